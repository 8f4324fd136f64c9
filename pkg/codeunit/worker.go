package codeunit

import (
	"context"
	"fmt"

	"github.com/ensemble-maestro/swarm/pkg/llmgateway"
	"github.com/ensemble-maestro/swarm/pkg/models"
)

// GeneratedFunction is a method worker's output: the function's full
// generated source text, ready to be wrapped in a CodeDocument.
type GeneratedFunction struct {
	Content string
}

// MethodWorker is the external collaborator spec.md §6 describes only at
// its interface: "a concrete LLM-backed generator" that turns one
// MethodJobPacket into a function body. Swapping providers or prompting
// strategy means swapping the implementation, not the Controller.
type MethodWorker interface {
	Execute(ctx context.Context, packet MethodJobPacket) (GeneratedFunction, error)
}

// methodWorkerInstruction is the fixed system prompt handed to the
// gateway for every method job, mirroring pkg/designer's fixed
// extraction instruction — deterministic framing across calls, with the
// packet's parsed signature details folded in as context rather than
// re-derived by the model.
const methodWorkerInstruction = `Implement the single function described below. Return only the ` +
	`function's source code, matching its signature, access modifier, and return type exactly. ` +
	`Follow the stated business logic, validation rules, and error handling.`

// LLMMethodWorker is the concrete MethodWorker backing production use: one
// Generate call per function, grounded on pkg/llmgateway.Gateway the same
// way pkg/designer.Parser drives its extraction call.
type LLMMethodWorker struct {
	gateway *llmgateway.Gateway
}

// NewLLMMethodWorker builds a MethodWorker over an LLM Gateway.
func NewLLMMethodWorker(gateway *llmgateway.Gateway) *LLMMethodWorker {
	return &LLMMethodWorker{gateway: gateway}
}

func (w *LLMMethodWorker) Execute(ctx context.Context, packet MethodJobPacket) (GeneratedFunction, error) {
	resp := w.gateway.Generate(ctx, llmgateway.Request{
		System:    methodWorkerInstruction,
		User:      methodPrompt(packet),
		AgentType: "method_worker",
		Stage:     string(models.StageSwarming),
	})
	if !resp.Success {
		return GeneratedFunction{}, fmt.Errorf("method worker generation failed: %s", resp.Error)
	}
	return GeneratedFunction{Content: resp.Content}, nil
}

func methodPrompt(packet MethodJobPacket) string {
	spec := packet.Spec
	return fmt.Sprintf(
		"Function: %s\nSignature: %s\nAccess modifier: %s\nReturn type: %s\nStatic: %t\nAsync: %t\n"+
			"Description: %s\nBusiness logic: %s\nValidation rules: %s\nError handling: %s\n",
		spec.FunctionName, spec.Signature, spec.AccessModifier, spec.ReturnType, spec.IsStatic, spec.IsAsync,
		spec.Description, spec.BusinessLogic, spec.ValidationRules, spec.ErrorHandling,
	)
}
