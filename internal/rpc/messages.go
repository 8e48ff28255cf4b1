package rpc

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/nextapp/go-controller/internal/features"
	"github.com/danielpatrickdp/nextapp/go-controller/internal/policy"
)

// Every request and response is a google.protobuf.Struct. Field names match
// the JSON tags of the domain types.

// #region decode
func getString(s *structpb.Struct, name string) (string, error) {
	v, ok := s.GetFields()[name]
	if !ok {
		return "", nil
	}
	sv, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return "", fmt.Errorf("field %s: want string", name)
	}
	return sv.StringValue, nil
}

func getInt(s *structpb.Struct, name string) (int, error) {
	v, ok := s.GetFields()[name]
	if !ok {
		return 0, nil
	}
	nv, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, fmt.Errorf("field %s: want number", name)
	}
	f := nv.NumberValue
	if f != math.Trunc(f) || math.IsInf(f, 0) || f > math.MaxInt32 || f < math.MinInt32 {
		return 0, fmt.Errorf("field %s: want integer, got %v", name, f)
	}
	return int(f), nil
}

func getBool(s *structpb.Struct, name string) (bool, error) {
	v, ok := s.GetFields()[name]
	if !ok {
		return false, nil
	}
	bv, ok := v.GetKind().(*structpb.Value_BoolValue)
	if !ok {
		return false, fmt.Errorf("field %s: want bool", name)
	}
	return bv.BoolValue, nil
}

func decodeAllowed(s *structpb.Struct) (string, features.Context, error) {
	var ctx features.Context
	app, err := getString(s, "app")
	if err != nil {
		return "", ctx, err
	}
	if ctx.TimeBucket, err = getInt(s, "time_bucket"); err != nil {
		return "", ctx, err
	}
	reason, err := getInt(s, "allow_reason")
	if err != nil {
		return "", ctx, err
	}
	ctx.AllowReason = features.AllowReason(reason)
	if ctx.PrevForeground, err = getString(s, "prev_foreground"); err != nil {
		return "", ctx, err
	}
	if ctx.BatteryBucket, err = getInt(s, "battery_bucket"); err != nil {
		return "", ctx, err
	}
	if ctx.MaxPowerMode, err = getBool(s, "max_power_mode"); err != nil {
		return "", ctx, err
	}
	return app, ctx, nil
}

func decodeDecision(s *structpb.Struct) (policy.Decision, error) {
	d := policy.Decision{Prefetch: []string{}}
	if v, ok := s.GetFields()["prefetch"]; ok {
		lv, ok := v.GetKind().(*structpb.Value_ListValue)
		if !ok {
			return policy.Decision{}, fmt.Errorf("field prefetch: want list")
		}
		for _, item := range lv.ListValue.GetValues() {
			sv, ok := item.GetKind().(*structpb.Value_StringValue)
			if !ok {
				return policy.Decision{}, fmt.Errorf("field prefetch: want strings")
			}
			d.Prefetch = append(d.Prefetch, sv.StringValue)
		}
	}
	d.GatingP = float32(s.GetFields()["gating_p"].GetNumberValue())
	d.TopScore = float32(s.GetFields()["top_score"].GetNumberValue())
	reason, err := getString(s, "reason")
	if err != nil {
		return policy.Decision{}, err
	}
	d.Reason = policy.Reason(reason)
	return d, nil
}

// #endregion decode

// #region encode
func encodeAllowed(app string, ctx features.Context) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"app":             app,
		"time_bucket":     ctx.TimeBucket,
		"allow_reason":    int(ctx.AllowReason),
		"prev_foreground": ctx.PrevForeground,
		"battery_bucket":  ctx.BatteryBucket,
		"max_power_mode":  ctx.MaxPowerMode,
	})
}

func encodeDecision(d policy.Decision) (*structpb.Struct, error) {
	prefetch := make([]any, len(d.Prefetch))
	for i, p := range d.Prefetch {
		prefetch[i] = p
	}
	return structpb.NewStruct(map[string]any{
		"prefetch":  prefetch,
		"gating_p":  float64(d.GatingP),
		"top_score": float64(d.TopScore),
		"reason":    string(d.Reason),
	})
}

func encodePair(aKey, a, bKey, b string) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		aKey: structpb.NewStringValue(a),
		bKey: structpb.NewStringValue(b),
	}}
}

// #endregion encode
