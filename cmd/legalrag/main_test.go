package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"legalrag/internal/domain"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func setupCorpus(t *testing.T) (cfgPath, outPath string) {
	t.Helper()
	dir := t.TempDir()
	src := filepath.Join(dir, "held")
	writeFile(t, filepath.Join(src, "Auda v State.txt"),
		"■ The appellant was convicted of armed robbery. [Para 1]\n■ The appeal was dismissed for want of evidence. [Para 2]")
	writeFile(t, filepath.Join(src, "nested", "Bello v Ojo.TXT"),
		"Damages for breach of contract were awarded. [Para 4] Costs to the plaintiff.")
	writeFile(t, filepath.Join(src, "notes.md"), "ignored")

	outPath = filepath.Join(dir, "chunks.jsonl")
	cfgPath = filepath.Join(dir, "config.yaml")
	writeFile(t, cfgPath, `
log: {level: error}
corpus:
  source_dir: `+src+`
  output_file: `+outPath+`
sparse:
  params_file: `+filepath.Join(dir, "bm25.json")+`
`)
	return cfgPath, outPath
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(t.Context())
	return out.String(), err
}

func TestChunkThenSearch(t *testing.T) {
	cfgPath, outPath := setupCorpus(t)

	_, err := run(t, "--config", cfgPath, "chunk")
	require.NoError(t, err)

	chunks, err := loadChunkFile(outPath)
	require.NoError(t, err)
	assert.Equal(t, []domain.Chunk{
		{Content: "The appellant was convicted of armed robbery.", Metadata: domain.ChunkMetadata{Source: "Auda v State.txt", ParaID: "[Para 1]"}},
		{Content: "The appeal was dismissed for want of evidence.", Metadata: domain.ChunkMetadata{Source: "Auda v State.txt", ParaID: "[Para 2]"}},
		{Content: "Damages for breach of contract were awarded.", Metadata: domain.ChunkMetadata{Source: "Bello v Ojo.TXT", ParaID: "[Para 4]"}},
		{Content: "Costs to the plaintiff.", Metadata: domain.ChunkMetadata{Source: "Bello v Ojo.TXT", ParaID: "N/A"}},
	}, chunks)

	out, err := run(t, "--config", cfgPath, "search", "--query", "breach of contract damages", "-k", "2")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "Bello v Ojo.TXT  [Para 4]")
	assert.Contains(t, lines[1], "Damages for breach of contract were awarded.")
}

func TestChunkArrayFormat(t *testing.T) {
	cfgPath, _ := setupCorpus(t)
	arrayOut := filepath.Join(t.TempDir(), "chunks.json")
	_, err := run(t, "--config", cfgPath, "chunk", "--format", "json", "--out", arrayOut, "--workers", "3")
	require.NoError(t, err)

	data, err := os.ReadFile(arrayOut)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "[\n    {"))
	chunks, err := loadChunkFile(arrayOut)
	require.NoError(t, err)
	assert.Len(t, chunks, 4)
}

func TestChunkRejectsUnknownFormat(t *testing.T) {
	cfgPath, _ := setupCorpus(t)
	_, err := run(t, "--config", cfgPath, "chunk", "--format", "csv")
	assert.ErrorContains(t, err, "unknown format")
}

func TestIndexAndVerifyInMemory(t *testing.T) {
	cfgPath, _ := setupCorpus(t)
	_, err := run(t, "--config", cfgPath, "chunk")
	require.NoError(t, err)
	_, err = run(t, "--config", cfgPath, "index")
	require.NoError(t, err)

	out, err := run(t, "--config", cfgPath, "verify")
	require.NoError(t, err)
	assert.Contains(t, out, "store:     memory")
	assert.Contains(t, out, "points:    0")
	assert.Contains(t, out, "chunks:    4")
}

func TestSearchWithoutChunks(t *testing.T) {
	cfgPath, _ := setupCorpus(t)
	_, err := run(t, "--config", cfgPath, "search", "--query", "bail")
	assert.ErrorContains(t, err, "open chunk file")
}

func TestIndexThenSearchEmbedded(t *testing.T) {
	cfgPath, _ := setupCorpus(t)
	body, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	indexDir := filepath.Join(filepath.Dir(cfgPath), "index")
	writeFile(t, cfgPath, string(body)+"vector_store:\n  type: chromem\n  chromem:\n    path: "+indexDir+"\n")

	_, err = run(t, "--config", cfgPath, "chunk")
	require.NoError(t, err)
	_, err = run(t, "--config", cfgPath, "index", "--clear")
	require.NoError(t, err)

	out, err := run(t, "--config", cfgPath, "verify")
	require.NoError(t, err)
	assert.Contains(t, out, "points:    4")
	assert.Contains(t, out, "chunks:    4")

	out, err = run(t, "--config", cfgPath, "search", "-q", "armed robbery", "-k", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Auda v State.txt  [Para 1]")
}
