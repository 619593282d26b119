package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

// GenerateContentHash возвращает SHA256 от source|variant|text.
// variant описывает настройки анализа (провайдер, enhanced mode), чтобы
// результат разных режимов не переиспользовался из кэша.
// Текст сравнивается после нормализации, поэтому пробелы не влияют на хеш.
func (g *Generator) GenerateContentHash(source, variant, text string) string {
	h := sha256.New()
	h.Write([]byte(strings.TrimSpace(source)))
	h.Write([]byte{'|'})
	h.Write([]byte(variant))
	h.Write([]byte{'|'})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

// VerifyContentHash проверяет, что запись истории соответствует своему ключу.
func (g *Generator) VerifyContentHash(expectedHash, source, variant, text string) bool {
	return g.GenerateContentHash(source, variant, text) == expectedHash
}
