// Package store defines the key-value namespaces the indices live in. Every
// namespace is an independent key space; there is no cross-key or cross-
// namespace transactionality. A batched read and a later batched write are
// two separate operations, so callers serialize read-modify-write cycles on
// the same namespace themselves.
package store

import (
	"context"
	"fmt"
)

// Namespace identifies one of the six index key spaces.
type Namespace int

const (
	Keywords Namespace = iota
	Abstracts
	Titles
	Chemicals
	Authors
	Metadata
)

// ContentNamespaces are the five posting-list namespaces, in the order the
// pipeline and the query engine visit them.
var ContentNamespaces = []Namespace{Keywords, Abstracts, Titles, Chemicals, Authors}

// AllNamespaces lists every namespace including Metadata.
var AllNamespaces = []Namespace{Keywords, Abstracts, Titles, Chemicals, Authors, Metadata}

func (n Namespace) String() string {
	switch n {
	case Keywords:
		return "keywords"
	case Abstracts:
		return "abstracts"
	case Titles:
		return "titles"
	case Chemicals:
		return "chemicals"
	case Authors:
		return "authors"
	case Metadata:
		return "metadata"
	default:
		return fmt.Sprintf("namespace(%d)", int(n))
	}
}

// ParseNamespace is the inverse of Namespace.String.
func ParseNamespace(name string) (Namespace, error) {
	for _, ns := range AllNamespaces {
		if ns.String() == name {
			return ns, nil
		}
	}
	return 0, fmt.Errorf("unknown namespace %q", name)
}

// KV is a single namespace. GetMany and SetMany are each atomic as a batch.
type KV interface {
	// GetMany returns the stored value for every key that exists. Absent
	// keys are missing from the result map.
	GetMany(ctx context.Context, keys []string) (map[string][]byte, error)
	// SetMany overwrites every key in updates.
	SetMany(ctx context.Context, updates map[string][]byte) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Provider hands out the KV for each namespace. Providers are constructed
// explicitly and passed to the components that need them.
type Provider interface {
	Namespace(ns Namespace) KV
}
