// Package builder implements the Building stage's "enhanced builder"
// contract (spec.md §4.7/§6): aggregate every CodeDocument produced for a
// project, write them into a staging directory grouped by code unit, shell
// out to the target language's build tool, and turn its output into
// structured BuilderError records for errors (severity 8) and warnings
// (severity 4).
//
// The actual process invocation is isolated behind the Toolchain interface
// (spec.md §1's "build-tool shelling... external collaborator, specified
// only at its interface"); ExecToolchain is the real os/exec implementation,
// FakeToolchain drives tests deterministically.
package builder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/ensemble-maestro/swarm/pkg/models"
	"github.com/ensemble-maestro/swarm/pkg/swarmtypes"
)

// Result is one Build invocation's outcome: whether the toolchain reported
// success and every BuilderError parsed from its output.
type Result struct {
	Success bool
	Output  string
	Errors  []swarmtypes.BuilderError
}

// Builder assembles a project's generated CodeDocuments into a staging
// directory and drives the configured Toolchain over them.
type Builder struct {
	toolchain  Toolchain
	stagingDir string
	log        *slog.Logger
}

// New builds a Builder that stages files under stagingDir/<projectID> and
// invokes tc to compile them.
func New(tc Toolchain, stagingDir string) *Builder {
	return &Builder{toolchain: tc, stagingDir: stagingDir, log: slog.With("component", "builder")}
}

// Build writes docs to a fresh staging directory for project, invokes the
// language toolchain matching project.TargetLanguage, and parses its
// output into BuilderErrors via the language-specific regex table.
func (b *Builder) Build(ctx context.Context, project *models.Project, docs []*models.CodeDocument) (Result, error) {
	dir := filepath.Join(b.stagingDir, project.ID, uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Result{}, fmt.Errorf("create staging dir: %w", err)
	}

	lang := normalizeLanguage(project.TargetLanguage)
	for _, doc := range docs {
		if err := b.writeDocument(dir, doc, lang); err != nil {
			return Result{}, fmt.Errorf("stage code document %s/%s: %w", doc.CodeUnitName, doc.FunctionName, err)
		}
	}

	output, toolErr := b.toolchain.Run(ctx, lang, dir)
	errs := parseErrors(lang, output)

	success := toolErr == nil && !hasFatalError(errs)
	if toolErr != nil {
		b.log.Warn("toolchain invocation reported an error", "language", lang, "project_id", project.ID, "error", toolErr)
	}

	return Result{Success: success, Output: output, Errors: errs}, nil
}

// writeDocument appends one CodeDocument's content to its code unit's
// source file under dir, creating the file with the first write.
func (b *Builder) writeDocument(dir string, doc *models.CodeDocument, lang string) error {
	name := doc.CodeUnitName + extensionFor(lang)
	path := filepath.Join(dir, name)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "\n// %s\n%s\n", doc.FunctionName, doc.Content); err != nil {
		return err
	}
	return nil
}

func hasFatalError(errs []swarmtypes.BuilderError) bool {
	for _, e := range errs {
		if e.Severity >= 8 {
			return true
		}
	}
	return false
}

func normalizeLanguage(lang string) string {
	if lang == "" {
		return "csharp"
	}
	return lang
}

func extensionFor(lang string) string {
	switch lang {
	case "typescript":
		return ".ts"
	case "python":
		return ".py"
	case "java":
		return ".java"
	case "javascript":
		return ".js"
	default:
		return ".cs"
	}
}
