package rag

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// LoadDocumentsJSONL 读取每行一个 Document 的 JSONL 文件。
// 文档必须已带 embedding；本函数不做切分或向量化。
func LoadDocumentsJSONL(path string) ([]Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open documents file: %w", err)
	}
	defer f.Close()
	return ReadDocumentsJSONL(f)
}

// ReadDocumentsJSONL 从 r 读取 JSONL 文档，空行会被跳过。
func ReadDocumentsJSONL(r io.Reader) ([]Document, error) {
	var docs []Document
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var doc Document
		if err := json.Unmarshal([]byte(text), &doc); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if doc.ID == "" {
			return nil, fmt.Errorf("line %d: document id is required", line)
		}
		if len(doc.Embedding) == 0 {
			return nil, fmt.Errorf("line %d: document %s has no embedding", line, doc.ID)
		}
		docs = append(docs, doc)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read documents: %w", err)
	}
	return docs, nil
}
