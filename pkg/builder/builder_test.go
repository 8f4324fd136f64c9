package builder

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ensemble-maestro/swarm/pkg/models"
)

func TestBuilder_Build_Success(t *testing.T) {
	dir := t.TempDir()
	b := New(FakeToolchain{Output: "Build succeeded.\n0 Error(s)\n"}, dir)

	project := &models.Project{ID: "proj-1", TargetLanguage: "csharp"}
	docs := []*models.CodeDocument{
		{CodeUnitName: "UserController", FunctionName: "Create", Content: "public void Create() {}"},
		{CodeUnitName: "UserController", FunctionName: "Delete", Content: "public void Delete() {}"},
	}

	result, err := b.Build(context.Background(), project, docs)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Empty(t, result.Errors)
}

func TestBuilder_Build_ParsesCSharpErrors(t *testing.T) {
	dir := t.TempDir()
	output := "UserController.cs(12,5): error CS1002: ; expected\n" +
		"UserController.cs(20,1): warning CS0168: variable declared but never used\n"
	b := New(FakeToolchain{Output: output}, dir)

	project := &models.Project{ID: "proj-2", TargetLanguage: "csharp"}
	docs := []*models.CodeDocument{{CodeUnitName: "UserController", FunctionName: "Create", Content: "broken"}}

	result, err := b.Build(context.Background(), project, docs)
	require.NoError(t, err)
	require.Len(t, result.Errors, 2)

	assert.Equal(t, "CS1002", result.Errors[0].ErrorType)
	assert.Equal(t, 12, result.Errors[0].LineNumber)
	assert.Equal(t, 8, result.Errors[0].Severity)

	assert.Equal(t, "CS0168", result.Errors[1].ErrorType)
	assert.Equal(t, 4, result.Errors[1].Severity)

	assert.False(t, result.Success)
}

func TestBuilder_Build_ParsesPythonErrors(t *testing.T) {
	dir := t.TempDir()
	output := "  File \"service.py\", line 4\nIndentationError: unexpected indent\n"
	b := New(FakeToolchain{Output: output}, dir)

	project := &models.Project{ID: "proj-3", TargetLanguage: "python"}
	docs := []*models.CodeDocument{{CodeUnitName: "Service", FunctionName: "run", Content: "broken"}}

	result, err := b.Build(context.Background(), project, docs)
	require.NoError(t, err)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "IndentationError", result.Errors[0].ErrorType)
	assert.Equal(t, 8, result.Errors[0].Severity)
}

func TestBuilder_Build_StagesOneFilePerCodeUnit(t *testing.T) {
	dir := t.TempDir()
	b := New(FakeToolchain{Output: ""}, dir)

	project := &models.Project{ID: "proj-4", TargetLanguage: "typescript"}
	docs := []*models.CodeDocument{
		{CodeUnitName: "UserService", FunctionName: "Get", Content: "function get() {}"},
		{CodeUnitName: "UserService", FunctionName: "Set", Content: "function set() {}"},
		{CodeUnitName: "OrderService", FunctionName: "Create", Content: "function create() {}"},
	}

	result, err := b.Build(context.Background(), project, docs)
	require.NoError(t, err)
	assert.True(t, result.Success)

	entries, err := os.ReadDir(filepath.Join(dir, "proj-4"))
	require.NoError(t, err)
	require.Len(t, entries, 1) // one staging run directory

	staged, err := os.ReadDir(filepath.Join(dir, "proj-4", entries[0].Name()))
	require.NoError(t, err)
	require.Len(t, staged, 2) // UserService.ts, OrderService.ts
}
