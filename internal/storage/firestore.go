package storage

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/meetscribe/minutes-front/internal/crypto"
	"github.com/meetscribe/minutes-front/internal/log"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Ensure FirestoreStore implements the Store interface
var _ Store = (*FirestoreStore)(nil)

const defaultSessionCollection = "browser_sessions"

// sessionDoc is the Firestore representation of a session. The API token is
// encrypted at rest; everything else is navigation state with no secret value.
type sessionDoc struct {
	SID                string    `firestore:"sid"`
	AuthToken          string    `firestore:"auth_token,omitempty"`
	IsAuthenticated    bool      `firestore:"is_authenticated"`
	RedirectAfterLogin string    `firestore:"redirect_after_login,omitempty"`
	PendingRedirect    string    `firestore:"pending_redirect,omitempty"`
	PendingJoinToken   string    `firestore:"pending_join_token,omitempty"`
	ShouldAutoJoin     bool      `firestore:"should_auto_join,omitempty"`
	CreatedAt          time.Time `firestore:"created_at"`
	LastActive         time.Time `firestore:"last_active"`
}

// FirestoreStore persists session state in Google Cloud Firestore, one
// document per browser session.
//
// Unlike a cache, session state is the source of truth for who is logged in,
// so both reads and writes surface errors instead of degrading silently. A
// dropped write here would log the user out without telling anyone.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
	ttl        time.Duration
	encryptor  crypto.Encryptor
}

// NewFirestoreStore creates a Firestore-backed session store
func NewFirestoreStore(ctx context.Context, projectID, database, collection string, ttl time.Duration, encryptor crypto.Encryptor) (*FirestoreStore, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required")
	}
	if encryptor == nil {
		return nil, fmt.Errorf("encryptor is required")
	}
	if collection == "" {
		collection = defaultSessionCollection
	}

	var client *firestore.Client
	var err error
	if database != "" && database != "(default)" {
		client, err = firestore.NewClientWithDatabase(ctx, projectID, database)
	} else {
		client, err = firestore.NewClient(ctx, projectID)
	}
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}

	log.LogInfoWithFields("storage", "Firestore session store initialized", map[string]any{
		"project":    projectID,
		"collection": collection,
	})

	return &FirestoreStore{
		client:     client,
		collection: collection,
		ttl:        ttl,
		encryptor:  encryptor,
	}, nil
}

func (f *FirestoreStore) doc(sid string) *firestore.DocumentRef {
	return f.client.Collection(f.collection).Doc(sid)
}

func (f *FirestoreStore) expired(doc *sessionDoc) bool {
	return f.ttl > 0 && time.Since(doc.LastActive) > f.ttl
}

func (f *FirestoreStore) toState(doc *sessionDoc) (*SessionState, error) {
	state := &SessionState{
		SID:                doc.SID,
		IsAuthenticated:    doc.IsAuthenticated,
		RedirectAfterLogin: doc.RedirectAfterLogin,
		PendingRedirect:    doc.PendingRedirect,
		PendingJoinToken:   doc.PendingJoinToken,
		ShouldAutoJoin:     doc.ShouldAutoJoin,
		CreatedAt:          doc.CreatedAt,
		LastActive:         doc.LastActive,
	}
	if doc.AuthToken != "" {
		token, err := f.encryptor.Decrypt(doc.AuthToken)
		if err != nil {
			return nil, fmt.Errorf("decrypting session token: %w", err)
		}
		state.AuthToken = token
	}
	return state, nil
}

func (f *FirestoreStore) getDoc(ctx context.Context, sid string) (*sessionDoc, error) {
	snap, err := f.doc(sid).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading session: %w", err)
	}

	var doc sessionDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("parsing session document: %w", err)
	}
	if f.expired(&doc) {
		return nil, ErrSessionNotFound
	}
	return &doc, nil
}

// GetState returns the session state, or ErrSessionNotFound
func (f *FirestoreStore) GetState(ctx context.Context, sid string) (*SessionState, error) {
	doc, err := f.getDoc(ctx, sid)
	if err != nil {
		return nil, err
	}
	return f.toState(doc)
}

// EnsureState creates the session document if missing and refreshes its
// last-active time
func (f *FirestoreStore) EnsureState(ctx context.Context, sid string) (*SessionState, error) {
	ref := f.doc(sid)

	err := f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			return tx.Set(ref, &sessionDoc{
				SID:        sid,
				CreatedAt:  time.Now(),
				LastActive: time.Now(),
			})
		}
		if err != nil {
			return err
		}
		var doc sessionDoc
		if err := snap.DataTo(&doc); err != nil {
			return err
		}
		if f.expired(&doc) {
			// Stale document, start fresh
			return tx.Set(ref, &sessionDoc{
				SID:        sid,
				CreatedAt:  time.Now(),
				LastActive: time.Now(),
			})
		}
		return tx.Update(ref, []firestore.Update{
			{Path: "last_active", Value: time.Now()},
		})
	})
	if err != nil {
		return nil, fmt.Errorf("ensuring session: %w", err)
	}
	return f.GetState(ctx, sid)
}

// update applies field updates, creating the document first if needed
func (f *FirestoreStore) update(ctx context.Context, sid string, updates []firestore.Update) error {
	ref := f.doc(sid)
	updates = append(updates, firestore.Update{Path: "last_active", Value: time.Now()})

	_, err := ref.Update(ctx, updates)
	if status.Code(err) == codes.NotFound {
		if _, err := f.EnsureState(ctx, sid); err != nil {
			return err
		}
		_, err = ref.Update(ctx, updates)
	}
	if err != nil {
		return fmt.Errorf("updating session: %w", err)
	}
	return nil
}

// SetToken encrypts and stores the API token and marks the session
// authenticated
func (f *FirestoreStore) SetToken(ctx context.Context, sid, token string) error {
	if token == "" {
		return f.ClearToken(ctx, sid)
	}

	encrypted, err := f.encryptor.Encrypt(token)
	if err != nil {
		return fmt.Errorf("encrypting session token: %w", err)
	}
	return f.update(ctx, sid, []firestore.Update{
		{Path: "auth_token", Value: encrypted},
		{Path: "is_authenticated", Value: true},
	})
}

// ClearToken removes the token and authenticated flag only
func (f *FirestoreStore) ClearToken(ctx context.Context, sid string) error {
	return f.update(ctx, sid, []firestore.Update{
		{Path: "auth_token", Value: firestore.Delete},
		{Path: "is_authenticated", Value: false},
	})
}

// GetToken returns the decrypted API token for the session
func (f *FirestoreStore) GetToken(ctx context.Context, sid string) (string, error) {
	doc, err := f.getDoc(ctx, sid)
	if err != nil {
		return "", err
	}
	if doc.AuthToken == "" {
		return "", ErrTokenNotFound
	}
	return f.encryptor.Decrypt(doc.AuthToken)
}

func (f *FirestoreStore) SetRedirectAfterLogin(ctx context.Context, sid, target string) error {
	return f.update(ctx, sid, []firestore.Update{
		{Path: "redirect_after_login", Value: target},
	})
}

// consumeField reads and clears a field in one transaction so the value is
// acted on exactly once even with concurrent requests
func (f *FirestoreStore) consumeField(ctx context.Context, sid, field string) (string, error) {
	ref := f.doc(sid)
	var value string

	err := f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			return nil
		}
		if err != nil {
			return err
		}
		raw, err := snap.DataAt(field)
		if err != nil {
			return nil // field not set
		}
		value, _ = raw.(string)
		if value == "" {
			return nil
		}
		return tx.Update(ref, []firestore.Update{
			{Path: field, Value: firestore.Delete},
		})
	})
	if err != nil {
		return "", fmt.Errorf("consuming %s: %w", field, err)
	}
	return value, nil
}

func (f *FirestoreStore) ConsumeRedirectAfterLogin(ctx context.Context, sid string) (string, error) {
	return f.consumeField(ctx, sid, "redirect_after_login")
}

func (f *FirestoreStore) SetPendingRedirect(ctx context.Context, sid, target string) error {
	return f.update(ctx, sid, []firestore.Update{
		{Path: "pending_redirect", Value: target},
	})
}

func (f *FirestoreStore) ConsumePendingRedirect(ctx context.Context, sid string) (string, error) {
	return f.consumeField(ctx, sid, "pending_redirect")
}

func (f *FirestoreStore) SetJoinIntent(ctx context.Context, sid string, intent JoinIntent) error {
	return f.update(ctx, sid, []firestore.Update{
		{Path: "pending_join_token", Value: intent.Token},
		{Path: "should_auto_join", Value: intent.AutoJoin},
	})
}

func (f *FirestoreStore) ConsumeJoinIntent(ctx context.Context, sid string) (*JoinIntent, error) {
	ref := f.doc(sid)
	var intent *JoinIntent

	err := f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		intent = nil
		snap, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			return nil
		}
		if err != nil {
			return err
		}
		var doc sessionDoc
		if err := snap.DataTo(&doc); err != nil {
			return err
		}
		if doc.PendingJoinToken == "" {
			return nil
		}
		intent = &JoinIntent{Token: doc.PendingJoinToken, AutoJoin: doc.ShouldAutoJoin}
		return tx.Update(ref, []firestore.Update{
			{Path: "pending_join_token", Value: firestore.Delete},
			{Path: "should_auto_join", Value: firestore.Delete},
		})
	})
	if err != nil {
		return nil, fmt.Errorf("consuming join intent: %w", err)
	}
	return intent, nil
}

func (f *FirestoreStore) ClearJoinIntent(ctx context.Context, sid string) error {
	return f.update(ctx, sid, []firestore.Update{
		{Path: "pending_join_token", Value: firestore.Delete},
		{Path: "should_auto_join", Value: firestore.Delete},
	})
}

// DeleteState removes the session document
func (f *FirestoreStore) DeleteState(ctx context.Context, sid string) error {
	_, err := f.doc(sid).Delete(ctx)
	if err != nil && status.Code(err) != codes.NotFound {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// ListStates returns all non-expired sessions
func (f *FirestoreStore) ListStates(ctx context.Context) ([]SessionState, error) {
	var states []SessionState

	iter := f.client.Collection(f.collection).Documents(ctx)
	defer iter.Stop()
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("listing sessions: %w", err)
		}

		var doc sessionDoc
		if err := snap.DataTo(&doc); err != nil {
			log.LogWarnWithFields("storage", "Skipping malformed session document", map[string]any{
				"doc":   snap.Ref.ID,
				"error": err.Error(),
			})
			continue
		}
		if f.expired(&doc) {
			continue
		}
		state, err := f.toState(&doc)
		if err != nil {
			log.LogWarnWithFields("storage", "Skipping undecryptable session document", map[string]any{
				"doc":   snap.Ref.ID,
				"error": err.Error(),
			})
			continue
		}
		states = append(states, *state)
	}
	return states, nil
}

// CleanupExpiredStates deletes sessions idle past the TTL
func (f *FirestoreStore) CleanupExpiredStates(ctx context.Context) (int, error) {
	if f.ttl <= 0 {
		return 0, nil
	}
	cutoff := time.Now().Add(-f.ttl)

	iter := f.client.Collection(f.collection).
		Where("last_active", "<", cutoff).
		Documents(ctx)
	defer iter.Stop()

	count := 0
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return count, fmt.Errorf("querying expired sessions: %w", err)
		}
		if _, err := snap.Ref.Delete(ctx); err != nil {
			log.LogErrorWithFields("storage", "Failed to delete expired session", map[string]any{
				"doc":   snap.Ref.ID,
				"error": err.Error(),
			})
			continue
		}
		count++
	}
	return count, nil
}

// Close closes the Firestore client
func (f *FirestoreStore) Close() error {
	return f.client.Close()
}
