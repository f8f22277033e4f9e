// Package policyrag reconciles document corpora into vector indexes and
// answers similarity and natural-language queries over them.
package policyrag

import (
	"context"

	"policyrag/schema"
	"policyrag/service"
)

// Retriever reconciles a corpus location before every lookup, so matches
// always reflect the documents currently at the location.
type Retriever struct {
	service *service.Service
}

// Match reconciles location and returns the documents matching the query.
// Unchanged documents are skipped by fingerprint, so repeat calls only pay
// for what changed since the last one.
func (r *Retriever) Match(ctx context.Context, query string, limit int, location string) ([]schema.Document, error) {
	if _, err := r.service.Process(ctx, location); err != nil {
		return nil, err
	}
	return r.service.Search(ctx, query, limit)
}

// NewRetriever builds a retriever over an existing service.
func NewRetriever(svc *service.Service) *Retriever {
	return &Retriever{service: svc}
}
