// Package llmgateway implements the LLM Gateway (C3): a single Generate
// call surface over a pluggable Provider, with a hard per-call timeout,
// token/cost accounting, and best-effort disk-persisted audit artifacts.
//
// Grounded on _examples/ShayCichocki-Alphie/internal/api (Client/Runner's
// anthropic-sdk-go call shape and TokenTracker) and the teacher's
// pkg/config (LLMProviderConfig's pricing fields) for the cost-accounting
// surface this package wraps into one operation.
package llmgateway

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ensemble-maestro/swarm/pkg/config"
)

// callTimeout is the hard per-Generate timeout spec.md §4.3 mandates.
const callTimeout = 120 * time.Second

// LLMResponse is Generate's result, matching spec.md §4.3/§6's external
// contract exactly.
type LLMResponse struct {
	Success    bool
	Content    string
	TokensIn   int
	TokensOut  int
	Cost       float64
	DurationMs int64
	Model      string
	Error      string
}

// Request bundles Generate's parameters plus the caller context spec.md
// requires for artifact naming and resource-limit lookups.
type Request struct {
	System      string
	User        string
	MaxTokens   int
	Temperature float64
	AgentType   string
	Stage       string
}

// Gateway is the C3 surface: one Generate operation backed by a named
// Provider plus a directory where generated content is archived for audit.
type Gateway struct {
	provider     Provider
	providerName string
	cfg          *config.LLMProviderConfig
	artifactDir  string
	log          *slog.Logger
}

// New builds a Gateway over provider, configured per cfg (pricing, model,
// timeout override) and persisting artifacts under artifactDir.
func New(provider Provider, providerName string, cfg *config.LLMProviderConfig, artifactDir string) *Gateway {
	return &Gateway{
		provider:     provider,
		providerName: providerName,
		cfg:          cfg,
		artifactDir:  artifactDir,
		log:          slog.With("component", "llmgateway", "provider", providerName),
	}
}

// Generate is C3's single operation. It never returns an error: call
// failures, including timeout, are reported via LLMResponse.Success=false
// and LLMResponse.Error, so message-handler callers can log and continue
// per spec.md §7's "handlers must not throw" policy.
func (g *Gateway) Generate(ctx context.Context, req Request) LLMResponse {
	start := time.Now()

	timeout := callTimeout
	if g.cfg != nil && g.cfg.TimeoutSeconds > 0 {
		configured := time.Duration(g.cfg.TimeoutSeconds) * time.Second
		if configured < timeout {
			timeout = configured
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	maxTokens := req.MaxTokens
	if maxTokens <= 0 && g.cfg != nil {
		maxTokens = g.cfg.MaxOutputTokens
	}

	model := ""
	if g.cfg != nil {
		model = g.cfg.Model
	}

	result, err := g.provider.Complete(callCtx, ProviderRequest{
		System:      req.System,
		User:        req.User,
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
		Model:       model,
	})

	duration := time.Since(start).Milliseconds()

	if err != nil {
		reason := "Error"
		if callCtx.Err() == context.DeadlineExceeded {
			reason = "Timeout"
		}
		g.log.Warn("generate call failed", "agent_type", req.AgentType, "stage", req.Stage, "error", err, "reason", reason)
		return LLMResponse{
			Success:    false,
			DurationMs: duration,
			Model:      model,
			Error:      reason,
		}
	}

	tokensIn := estimateTokens(req.System + " " + req.User)
	if result.TokensIn > 0 {
		tokensIn = result.TokensIn
	}
	tokensOut := estimateTokens(result.Content)
	if result.TokensOut > 0 {
		tokensOut = result.TokensOut
	}

	cost := g.cost(tokensIn, tokensOut)

	resp := LLMResponse{
		Success:    true,
		Content:    result.Content,
		TokensIn:   tokensIn,
		TokensOut:  tokensOut,
		Cost:       cost,
		DurationMs: duration,
		Model:      model,
	}

	g.persistArtifact(req, resp)

	return resp
}

// cost applies the provider's per-million-token linear pricing, per
// spec.md §6's pricing table convention.
func (g *Gateway) cost(tokensIn, tokensOut int) float64 {
	if g.cfg == nil {
		return 0
	}
	inCost := float64(tokensIn) / 1_000_000 * g.cfg.InputCostPerMToken
	outCost := float64(tokensOut) / 1_000_000 * g.cfg.OutputCostPerMToken
	return inCost + outCost
}

// estimateTokens upper-bounds word count and len/4, per spec.md §4.3's
// "estimated" token-counting rule — used only as a fallback when the
// provider does not report real usage.
func estimateTokens(s string) int {
	words := 0
	inWord := false
	for _, r := range s {
		if r == ' ' || r == '\n' || r == '\t' {
			inWord = false
			continue
		}
		if !inWord {
			words++
			inWord = true
		}
	}
	byLen := len(s) / 4
	if words > byLen {
		return words
	}
	return byLen
}

// persistArtifact writes the generated content to a timestamped file
// under the artifact directory for audit. Storage failure is logged, not
// returned, per spec.md §4.3.
func (g *Gateway) persistArtifact(req Request, resp LLMResponse) {
	if g.artifactDir == "" {
		return
	}
	if err := os.MkdirAll(g.artifactDir, 0o755); err != nil {
		g.log.Warn("failed to create artifact directory", "error", err)
		return
	}

	name := fmt.Sprintf("%s-%s-%d.md", req.Stage, req.AgentType, time.Now().UnixNano())
	path := filepath.Join(g.artifactDir, name)

	if err := os.WriteFile(path, []byte(resp.Content), 0o644); err != nil {
		g.log.Warn("failed to persist generate artifact", "path", path, "error", err)
	}
}
