// Package custody implements the access node: a durable mapping from
// videoId to sealed key material plus owner identity, with policy
// enforcement on retrieval. The owner is always granted; any other
// requester must hold a valid access record, verified against the
// ledger. There is no open-access fallback.
package custody

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/prividocs/privistream/internal/keyvalstore"
	"github.com/prividocs/privistream/pkg/auth"
	"github.com/prividocs/privistream/pkg/crypt"
	"github.com/prividocs/privistream/pkg/types"
)

const recordVersion = 1

// Verifier answers whether a requester holds a currently valid access
// grant for a video. The ledger implements it.
type Verifier interface {
	HasValidAccess(ctx context.Context, userID, videoID string) (bool, error)
}

// StoreKeyRequest registers sealed key material for a video.
type StoreKeyRequest struct {
	VideoID      string
	Key          []byte
	ChunkNonces  [][]byte
	OwnerAddress string
	Signature    []byte
}

// RequestKeyRequest asks for the sealed key material of a video.
type RequestKeyRequest struct {
	VideoID          string
	RequesterAddress string
	Signature        []byte
}

// keyRecord is the persisted custody record, one per videoId,
// last-writer-wins. Stored as JSON under key/{videoId}.
type keyRecord struct {
	Version      int      `json:"v"`
	VideoID      string   `json:"videoId"`
	Key          []byte   `json:"key"`
	ChunkNonces  [][]byte `json:"chunkNonces"`
	OwnerAddress string   `json:"ownerAddress"`
}

// Service is the key custody service.
type Service struct {
	store    *keyvalstore.KeyValStore
	verifier Verifier
	log      *logrus.Logger
}

// New creates the service. verifier must not be nil: without a policy
// source every non-owner request is denied, never allowed.
func New(store *keyvalstore.KeyValStore, verifier Verifier, log *logrus.Logger) *Service {
	if log == nil {
		log = logrus.New()
	}
	return &Service{store: store, verifier: verifier, log: log}
}

func recordKey(videoID string) []byte {
	return []byte("key/" + videoID)
}

// StoreKey validates, authenticates and persists key material for a
// video. A prior record for the same videoId is overwritten.
func (s *Service) StoreKey(ctx context.Context, req StoreKeyRequest) error {
	if err := s.validateStore(req); err != nil {
		return err
	}

	if err := auth.Verify(req.OwnerAddress, auth.StoreKeyMessage(req.VideoID), req.Signature); err != nil {
		s.log.WithFields(logrus.Fields{
			"videoId": req.VideoID,
			"address": req.OwnerAddress,
		}).Warn("store key: signature verification failed")
		return err
	}

	record := keyRecord{
		Version:      recordVersion,
		VideoID:      req.VideoID,
		Key:          req.Key,
		ChunkNonces:  req.ChunkNonces,
		OwnerAddress: req.OwnerAddress,
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encoding key record: %w", err)
	}
	if err := s.store.Write(recordKey(req.VideoID), data); err != nil {
		return fmt.Errorf("persisting key record: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"videoId": req.VideoID,
		"owner":   req.OwnerAddress,
		"chunks":  len(req.ChunkNonces),
	}).Info("key material stored")
	return nil
}

// RequestKey authenticates the requester, applies the access policy and
// returns the sealed key material. The material is read-only; callers
// receive their own copy via JSON decoding.
func (s *Service) RequestKey(ctx context.Context, req RequestKeyRequest) (*types.EncryptionMaterial, error) {
	if req.VideoID == "" || req.RequesterAddress == "" {
		return nil, fmt.Errorf("%w: missing required fields", types.ErrValidation)
	}

	if err := auth.Verify(req.RequesterAddress, auth.RequestKeyMessage(req.VideoID), req.Signature); err != nil {
		s.log.WithFields(logrus.Fields{
			"videoId": req.VideoID,
			"address": req.RequesterAddress,
		}).Warn("request key: signature verification failed")
		return nil, err
	}

	record, err := s.load(req.VideoID)
	if err != nil {
		return nil, err
	}

	if req.RequesterAddress != record.OwnerAddress {
		granted, err := s.verify(ctx, req.RequesterAddress, req.VideoID)
		if err != nil {
			return nil, fmt.Errorf("verifying access grant: %w", err)
		}
		if !granted {
			s.log.WithFields(logrus.Fields{
				"videoId":   req.VideoID,
				"requester": req.RequesterAddress,
			}).Warn("request key: no valid access grant")
			return nil, fmt.Errorf("%w: no valid access grant for %s", types.ErrAccessDenied, req.VideoID)
		}
	}

	s.log.WithFields(logrus.Fields{
		"videoId":   req.VideoID,
		"requester": req.RequesterAddress,
		"owner":     req.RequesterAddress == record.OwnerAddress,
	}).Info("key material released")

	return &types.EncryptionMaterial{
		Key:         record.Key,
		ChunkNonces: record.ChunkNonces,
	}, nil
}

// Owner returns the owner address stored for a video.
func (s *Service) Owner(videoID string) (string, error) {
	record, err := s.load(videoID)
	if err != nil {
		return "", err
	}
	return record.OwnerAddress, nil
}

func (s *Service) validateStore(req StoreKeyRequest) error {
	switch {
	case req.VideoID == "":
		return fmt.Errorf("%w: missing videoId", types.ErrValidation)
	case len(req.Key) == 0:
		return fmt.Errorf("%w: missing key", types.ErrValidation)
	case len(req.Key) != crypt.KeySize:
		return fmt.Errorf("%w: key must be %d bytes", types.ErrValidation, crypt.KeySize)
	case len(req.ChunkNonces) == 0:
		return fmt.Errorf("%w: missing chunkNonces", types.ErrValidation)
	case req.OwnerAddress == "":
		return fmt.Errorf("%w: missing ownerAddress", types.ErrValidation)
	}
	for i, nonce := range req.ChunkNonces {
		if len(nonce) != crypt.NonceSize {
			return fmt.Errorf("%w: nonce %d must be %d bytes", types.ErrValidation, i, crypt.NonceSize)
		}
	}
	return nil
}

func (s *Service) load(videoID string) (*keyRecord, error) {
	data, err := s.store.Read(recordKey(videoID))
	if err != nil {
		if errors.Is(err, keyvalstore.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: no key record for %s", types.ErrNotFound, videoID)
		}
		return nil, err
	}

	var record keyRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("decoding key record for %s: %w", videoID, err)
	}
	if record.Version != recordVersion {
		return nil, fmt.Errorf("unsupported key record version %d for %s", record.Version, videoID)
	}
	return &record, nil
}

// verify consults the policy source. A missing verifier denies; policy
// failures never degrade into an allow.
func (s *Service) verify(ctx context.Context, requester, videoID string) (bool, error) {
	if s.verifier == nil {
		return false, nil
	}
	return s.verifier.HasValidAccess(ctx, requester, videoID)
}
