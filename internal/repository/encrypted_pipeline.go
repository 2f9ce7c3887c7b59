package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/buildpulse/buildpulse-go/internal/crypto"
	"github.com/buildpulse/buildpulse-go/internal/model"
)

// EncryptedPipelineStore wraps a PipelineStore so that Username and Credential
// are ciphertext in the underlying store and plaintext everywhere else.
//
// Writes encrypt in place: after Save or SaveAll the caller's pipelines hold
// the encrypted values that were written. Reads decrypt before returning.
// A failed encrypt or decrypt is returned as a *crypto.CodecError and the
// operation does not reach the store (writes) or the caller (reads).
type EncryptedPipelineStore struct {
	next  PipelineStore
	codec crypto.Codec
}

// NewEncryptedPipelineStore wraps next with field encryption using codec.
func NewEncryptedPipelineStore(next PipelineStore, codec crypto.Codec) *EncryptedPipelineStore {
	return &EncryptedPipelineStore{next: next, codec: codec}
}

func (s *EncryptedPipelineStore) Save(ctx context.Context, p *model.Pipeline) error {
	if err := s.encrypt(p); err != nil {
		return err
	}
	return s.next.Save(ctx, p)
}

func (s *EncryptedPipelineStore) SaveAll(ctx context.Context, pipelines []*model.Pipeline) error {
	sealed := make([]model.Pipeline, len(pipelines))
	for i, p := range pipelines {
		sealed[i] = *p
		if err := s.encrypt(&sealed[i]); err != nil {
			return err
		}
	}
	for i, p := range pipelines {
		p.Username, p.Credential = sealed[i].Username, sealed[i].Credential
	}
	return s.next.SaveAll(ctx, pipelines)
}

func (s *EncryptedPipelineStore) FindByID(ctx context.Context, id string) (*model.Pipeline, error) {
	p, err := s.next.FindByID(ctx, id)
	if err != nil || p == nil {
		return p, err
	}
	if err := s.decrypt(p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *EncryptedPipelineStore) FindByProjectID(ctx context.Context, projectID string) ([]model.Pipeline, error) {
	pipelines, err := s.next.FindByProjectID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	for i := range pipelines {
		if err := s.decrypt(&pipelines[i]); err != nil {
			return nil, err
		}
	}
	return pipelines, nil
}

func (s *EncryptedPipelineStore) Delete(ctx context.Context, id string) error {
	return s.next.Delete(ctx, id)
}

// encrypt replaces both fields only once both succeeded.
func (s *EncryptedPipelineStore) encrypt(p *model.Pipeline) error {
	username, err := s.codec.Encrypt(p.Username)
	if err != nil {
		return asCodecError("encrypt", p.ID, err)
	}
	credential, err := s.codec.Encrypt(p.Credential)
	if err != nil {
		return asCodecError("encrypt", p.ID, err)
	}
	p.Username, p.Credential = username, credential
	return nil
}

func (s *EncryptedPipelineStore) decrypt(p *model.Pipeline) error {
	username, err := s.codec.Decrypt(p.Username)
	if err != nil {
		return asCodecError("decrypt", p.ID, err)
	}
	credential, err := s.codec.Decrypt(p.Credential)
	if err != nil {
		return asCodecError("decrypt", p.ID, err)
	}
	p.Username, p.Credential = username, credential
	return nil
}

func asCodecError(op, pipelineID string, err error) error {
	var ce *crypto.CodecError
	if errors.As(err, &ce) {
		return fmt.Errorf("pipeline %s: %w", pipelineID, err)
	}
	return fmt.Errorf("pipeline %s: %w", pipelineID, &crypto.CodecError{Op: op, Err: err})
}
