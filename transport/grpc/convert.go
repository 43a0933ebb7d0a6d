package grpctransport

import (
	"encoding/json"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/latticeplan/htn/engine/durable"
	"github.com/latticeplan/htn/plan"
	"github.com/latticeplan/htn/registry"
)

// structFromJSON marshals v to JSON and reparses it into a *structpb.Struct.
// Every wire type this package sends back out (plan.Record, DomainDescriptor)
// already has json tags, so this two-step bridge avoids a second, parallel
// structpb-specific encoding for the same data.
func structFromJSON(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}

func recordToStruct(r *plan.Record) (*structpb.Struct, error) {
	return structFromJSON(r)
}

func stringSlice(v *structpb.Value) []string {
	if v == nil {
		return nil
	}
	lv := v.GetListValue()
	if lv == nil {
		return nil
	}
	out := make([]string, 0, len(lv.Values))
	for _, e := range lv.Values {
		out = append(out, e.GetStringValue())
	}
	return out
}

func stringMapOfSlices(v *structpb.Value) map[string][]string {
	if v == nil {
		return nil
	}
	sv := v.GetStructValue()
	if sv == nil {
		return nil
	}
	out := make(map[string][]string, len(sv.Fields))
	for k, fv := range sv.Fields {
		out[k] = stringSlice(fv)
	}
	return out
}

// childSpecsFromValue decodes the "root" field of a create-plan request: a
// list of {task_name|action_name, args} objects, the wire form of a
// []registry.ChildSpec naming the root task list a refinement call starts
// from.
func childSpecsFromValue(v *structpb.Value) []registry.ChildSpec {
	if v == nil {
		return nil
	}
	lv := v.GetListValue()
	if lv == nil {
		return nil
	}
	out := make([]registry.ChildSpec, 0, len(lv.Values))
	for _, e := range lv.Values {
		sv := e.GetStructValue()
		if sv == nil {
			continue
		}
		out = append(out, registry.ChildSpec{
			TaskName:   sv.Fields["task_name"].GetStringValue(),
			ActionName: sv.Fields["action_name"].GetStringValue(),
			Args:       stringSlice(sv.Fields["args"]),
		})
	}
	return out
}

// factInputsFromValue decodes the "initial_facts" field of a create-plan
// request: a list of {predicate, subject, value} objects, the wire form of
// a []durable.FactInput.
func factInputsFromValue(v *structpb.Value) []durable.FactInput {
	if v == nil {
		return nil
	}
	lv := v.GetListValue()
	if lv == nil {
		return nil
	}
	out := make([]durable.FactInput, 0, len(lv.Values))
	for _, e := range lv.Values {
		sv := e.GetStructValue()
		if sv == nil {
			continue
		}
		out = append(out, durable.FactInput{
			Predicate: sv.Fields["predicate"].GetStringValue(),
			Subject:   stringSlice(sv.Fields["subject"]),
			Value:     sv.Fields["value"].AsInterface(),
		})
	}
	return out
}
