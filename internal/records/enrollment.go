package records

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"cloud.google.com/go/firestore"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	defaultEnrollmentCollection = "enrollment_numbers"
	enrollmentSuffixDigits      = 4
	maxEnrollmentAttempts       = 12
)

// ErrNumberSpaceExhausted is returned when the generator cannot find a free
// number within its attempt budget.
var ErrNumberSpaceExhausted = errors.New("records: enrollment number space exhausted")

// EnrollmentNumbers allocates unique year-prefixed admission numbers such as
// "2026-0113". Each claimed number is recorded as its own document so
// concurrent allocations contend on the claim, not on a shared counter.
type EnrollmentNumbers struct {
	client     *firestore.Client
	collection string
	now        func() time.Time
	rng        *rand.Rand
	rngMu      sync.Mutex
	logger     *zap.Logger
}

// NewEnrollmentNumbers constructs a generator over the given client.
func NewEnrollmentNumbers(client *firestore.Client, collection string, logger *zap.Logger) *EnrollmentNumbers {
	if client == nil {
		panic("records: firestore client is required")
	}
	if collection == "" {
		collection = defaultEnrollmentCollection
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentNumbers{
		client:     client,
		collection: collection,
		now:        time.Now,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		logger:     logger,
	}
}

// Next claims and returns a fresh enrollment number. Collisions with already
// claimed numbers are retried with a new candidate, up to the attempt budget.
func (g *EnrollmentNumbers) Next(ctx context.Context, studentID string) (string, error) {
	for attempt := 0; attempt < maxEnrollmentAttempts; attempt++ {
		candidate := g.candidate()
		claimed, err := g.claim(ctx, candidate, studentID)
		if err != nil {
			return "", err
		}
		if claimed {
			return candidate, nil
		}
		g.logger.Debug("records: enrollment number taken, retrying",
			zap.String("candidate", candidate))
	}
	return "", ErrNumberSpaceExhausted
}

func (g *EnrollmentNumbers) candidate() string {
	g.rngMu.Lock()
	suffix := g.rng.Intn(pow10(enrollmentSuffixDigits))
	g.rngMu.Unlock()
	return fmt.Sprintf("%d-%0*d", g.now().Year(), enrollmentSuffixDigits, suffix)
}

// claim transactionally creates the number document. A false return means
// the number was already taken.
func (g *EnrollmentNumbers) claim(ctx context.Context, number, studentID string) (bool, error) {
	ref := g.client.Collection(g.collection).Doc(number)
	err := g.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		_, err := tx.Get(ref)
		if err == nil {
			return status.Error(codes.AlreadyExists, number)
		}
		if status.Code(err) != codes.NotFound {
			return err
		}
		return tx.Create(ref, map[string]interface{}{
			"number":     number,
			"student_id": studentID,
			"claimed_at": g.now().UTC(),
		})
	})
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return false, nil
		}
		return false, fmt.Errorf("records: claim %s: %w", number, err)
	}
	return true, nil
}

func pow10(n int) int {
	out := 1
	for i := 0; i < n; i++ {
		out *= 10
	}
	return out
}
