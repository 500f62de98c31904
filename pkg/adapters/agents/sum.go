package agents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aescanero/dagrun/pkg/ports"
)

// ErrNoNumbers is returned when the numbers input is missing or empty
var ErrNoNumbers = errors.New("no numbers provided")

// Sum adds the values of its "numbers" input
type Sum struct{}

// NewSum creates the sum agent
func NewSum() *Sum {
	return &Sum{}
}

func (a *Sum) Name() string { return "sum" }

func (a *Sum) Execute(ctx context.Context, inv ports.Invocation) (interface{}, error) {
	numbers, ok := inv.Inputs["numbers"].([]interface{})
	if !ok || len(numbers) == 0 {
		return nil, ErrNoNumbers
	}

	var total float64
	for i, n := range numbers {
		v, err := toFloat(n)
		if err != nil {
			return nil, fmt.Errorf("numbers[%d]: %w", i, err)
		}
		total += v
	}

	return map[string]interface{}{"sum": total}, nil
}

func toFloat(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	default:
		return 0, fmt.Errorf("not a number: %v", v)
	}
}
