package attributes

import (
	"fmt"
	"reflect"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/mrzor/alpc-tracer/internal/alpc"
	"github.com/mrzor/alpc-tracer/internal/config"
	"github.com/mrzor/alpc-tracer/internal/correlator"
)

// Party is one side of a message as seen by expressions.
type Party struct {
	PID  int    `expr:"pid"`
	Name string `expr:"name"`
	TID  int    `expr:"tid"`
}

// Env is the expression environment for one correlated message.
type Env struct {
	Sender    Party  `expr:"sender"`
	Receiver  Party  `expr:"receiver"`
	MessageID int64  `expr:"message_id"`
	Direction string `expr:"direction"`
}

func partyOf(id alpc.Identity) Party {
	return Party{PID: id.PID, Name: id.Name, TID: id.TID}
}

// NewEnv builds the environment for in.
func NewEnv(in correlator.Interaction) Env {
	return Env{
		Sender:    partyOf(in.Sender),
		Receiver:  partyOf(in.Receiver),
		MessageID: int64(in.MessageID),
		Direction: string(in.Direction),
	}
}

// Evaluator handles compilation and evaluation of custom attribute expressions.
type Evaluator struct {
	logger        *zap.Logger
	customAttrs   []config.CustomAttribute
	compiledExprs []*vm.Program
}

// NewEvaluator creates a new attribute evaluator.
// It pre-compiles all custom attribute expressions for efficiency.
func NewEvaluator(customAttrs []config.CustomAttribute, logger *zap.Logger) (*Evaluator, error) {
	compiledExprs := make([]*vm.Program, len(customAttrs))
	for i, attr := range customAttrs {
		program, err := expr.Compile(attr.Expression, expr.Env(Env{}))
		if err != nil {
			return nil, fmt.Errorf("failed to compile expression for attribute %q: %w", attr.Name, err)
		}
		compiledExprs[i] = program
	}

	return &Evaluator{
		logger:        logger.Named("attributes"),
		customAttrs:   customAttrs,
		compiledExprs: compiledExprs,
	}, nil
}

// EvaluateCustomAttributes evaluates every custom attribute against in.
// An expression that fails at runtime is logged and skipped.
func (e *Evaluator) EvaluateCustomAttributes(in correlator.Interaction) []attribute.KeyValue {
	if len(e.customAttrs) == 0 {
		return nil
	}

	env := NewEnv(in)

	var attrs []attribute.KeyValue
	for i, customAttr := range e.customAttrs {
		output, err := expr.Run(e.compiledExprs[i], env)
		if err != nil {
			e.logger.Warn("Failed to evaluate attribute expression",
				zap.String("attribute", customAttr.Name),
				zap.Error(err),
			)
			continue
		}

		// Maps expand into one attribute per key with dot notation
		outputValue := reflect.ValueOf(output)
		if outputValue.Kind() != reflect.Map {
			attrs = append(attrs, attribute.String(customAttr.Name, fmt.Sprint(output)))
			continue
		}
		for _, key := range outputValue.MapKeys() {
			attrName := customAttr.Name + "." + sanitizeAttributeName(fmt.Sprint(key.Interface()))
			attrs = append(attrs, attribute.String(attrName, fmt.Sprint(outputValue.MapIndex(key).Interface())))
		}
	}

	return attrs
}

// sanitizeAttributeName replaces non-alphanumeric characters with underscores.
// This ensures attribute names are safe for OpenTelemetry.
func sanitizeAttributeName(name string) string {
	result := make([]byte, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' {
			result[i] = c
		} else {
			result[i] = '_'
		}
	}
	return string(result)
}
