package usecase

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"sync/atomic"

	"telegram-invoicing-crm/internal/domain/model"
	"telegram-invoicing-crm/internal/domain/ports/repository"
)

const (
	referenceChars    = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	referenceLength   = 10
	referenceAttempts = 5
)

var referenceFallbackSeq atomic.Int64

func randomReference() (string, error) {
	buffer := make([]byte, referenceLength)
	if _, err := io.ReadFull(rand.Reader, buffer); err != nil {
		return "", err
	}
	for i := 0; i < referenceLength; i++ {
		buffer[i] = referenceChars[int(buffer[i])%len(referenceChars)]
	}
	return model.ReferencePrefix + string(buffer), nil
}

// generateReference produces a reference no existing record uses. Collisions
// are expected to be vanishingly rare, so a handful of retries suffices; a
// monotonic counter suffix guarantees termination even against a repo that
// keeps reporting collisions.
func generateReference(ctx context.Context, payments repository.PaymentRepository) (string, error) {
	for i := 0; i < referenceAttempts; i++ {
		ref, err := randomReference()
		if err != nil {
			return "", err
		}
		exists, err := payments.ReferenceExists(ctx, nil, ref)
		if err != nil {
			return "", err
		}
		if !exists {
			return ref, nil
		}
	}
	ref, err := randomReference()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%d", ref, referenceFallbackSeq.Add(1)), nil
}
