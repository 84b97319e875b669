package convert

import (
	"encoding/json"
	"fmt"

	"github.com/relayforge/claude-gateway/internal/config"
)

// Transformer is one pure conversion step. Transform must be referentially
// transparent: no I/O, no mutation of shared state, and absence of an
// optional inbound field is handled by returning the context unchanged,
// never by failing.
type Transformer interface {
	Name() string
	Transform(Context) (Context, error)
}

// TransformerError wraps a failure with the identity of the transformer it
// came from. The pipeline never retries; retry policy belongs to callers.
type TransformerError struct {
	Transformer string
	Err         error
}

func (e *TransformerError) Error() string {
	return fmt.Sprintf("transformer %s: %v", e.Transformer, e.Err)
}

func (e *TransformerError) Unwrap() error { return e.Err }

// Pipeline runs transformers strictly in registration order.
type Pipeline struct {
	transformers []Transformer
}

// NewPipeline builds a pipeline over an explicit transformer list. Order
// is a contract: later transformers rely on the work of earlier ones.
func NewPipeline(transformers ...Transformer) *Pipeline {
	return &Pipeline{transformers: transformers}
}

// NewDefaultPipeline assembles the canonical transformer chain. Token
// bounds come from the request-scoped runtime and are fixed for the life
// of the pipeline.
func NewDefaultPipeline(rt *config.Runtime) *Pipeline {
	return NewPipeline(
		SystemMessage{},
		MessageContent{},
		TokenLimit{Min: rt.MinTokensLimit, Max: rt.MaxTokensLimit},
		ToolSchema{},
		ToolChoice{},
		OptionalFields{},
		MetadataInjector{},
	)
}

// Transformers returns the registered chain, in order.
func (p *Pipeline) Transformers() []Transformer {
	out := make([]Transformer, len(p.transformers))
	copy(out, p.transformers)
	return out
}

// Execute feeds ctx through the chain and returns the final outbound
// document. On the first failure execution stops and the error carries
// the failing transformer's name; later transformers are never applied.
func (p *Pipeline) Execute(ctx Context) (json.RawMessage, error) {
	for _, t := range p.transformers {
		next, err := t.Transform(ctx)
		if err != nil {
			return nil, &TransformerError{Transformer: t.Name(), Err: err}
		}
		ctx = next
	}
	return ctx.Outbound(), nil
}
