package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"idp-node/internal/app/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (gs *GormStore) conn(ctx context.Context) *gorm.DB {
	return gs.db.WithContext(ctx)
}

func (gs *GormStore) upsert(ctx context.Context, record any) error {
	return gs.conn(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(record).Error
}

// first loads a record by primary key and reports whether it exists.
func (gs *GormStore) first(ctx context.Context, dest any, query string, args ...any) (bool, error) {
	err := gs.conn(ctx).Where(query, args...).First(dest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (gs *GormStore) SaveQueueMessage(ctx context.Context, msg model.QueueMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return gs.upsert(ctx, &BufferedMessage{
		RequestID: msg.RequestID,
		Height:    msg.Height,
		Payload:   string(payload),
	})
}

func (gs *GormStore) GetQueueMessage(ctx context.Context, requestID string) (model.QueueMessage, bool, error) {
	var record BufferedMessage
	found, err := gs.first(ctx, &record, "request_id = ?", requestID)
	if err != nil || !found {
		return model.QueueMessage{}, found, err
	}

	var msg model.QueueMessage
	if err := json.Unmarshal([]byte(record.Payload), &msg); err != nil {
		return model.QueueMessage{}, false, err
	}
	return msg, true, nil
}

func (gs *GormStore) RemoveQueueMessage(ctx context.Context, requestID string) error {
	return gs.conn(ctx).Where("request_id = ?", requestID).Delete(&BufferedMessage{}).Error
}

func (gs *GormStore) AddExpectedRequest(ctx context.Context, height int64, requestID string) error {
	return gs.conn(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&ExpectedRequest{Height: height, RequestID: requestID}).Error
}

func (gs *GormStore) ExpectedRequestsInRange(ctx context.Context, from, to int64) ([]string, error) {
	var records []ExpectedRequest
	err := gs.conn(ctx).
		Where("height BETWEEN ? AND ?", from, to).
		Order("height").
		Find(&records).Error
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(records))
	ids := make([]string, 0, len(records))
	for _, r := range records {
		if _, ok := seen[r.RequestID]; ok {
			continue
		}
		seen[r.RequestID] = struct{}{}
		ids = append(ids, r.RequestID)
	}
	return ids, nil
}

func (gs *GormStore) RemoveExpectedRequestsInRange(ctx context.Context, from, to int64) error {
	return gs.conn(ctx).Where("height BETWEEN ? AND ?", from, to).Delete(&ExpectedRequest{}).Error
}

func (gs *GormStore) SetCounterparty(ctx context.Context, requestID, nodeID string) error {
	return gs.upsert(ctx, &Counterparty{RequestID: requestID, NodeID: nodeID})
}

func (gs *GormStore) GetCounterparty(ctx context.Context, requestID string) (string, bool, error) {
	var record Counterparty
	found, err := gs.first(ctx, &record, "request_id = ?", requestID)
	return record.NodeID, found, err
}

func (gs *GormStore) RemoveCounterparty(ctx context.Context, requestID string) error {
	return gs.conn(ctx).Where("request_id = ?", requestID).Delete(&Counterparty{}).Error
}

func (gs *GormStore) AppendProofContribution(ctx context.Context, requestID string, contribution model.ProofContribution) error {
	payload, err := json.Marshal(contribution.PrivateProof)
	if err != nil {
		return err
	}
	return gs.conn(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&PrivateProofContribution{
			RequestID: requestID,
			IdpID:     contribution.IdpID,
			Payload:   string(payload),
		}).Error
}

func (gs *GormStore) ProofContributions(ctx context.Context, requestID string) ([]model.ProofContribution, error) {
	var records []PrivateProofContribution
	err := gs.conn(ctx).Where("request_id = ?", requestID).Order("id").Find(&records).Error
	if err != nil {
		return nil, err
	}

	contributions := make([]model.ProofContribution, 0, len(records))
	for _, r := range records {
		var proof model.PrivateProofObject
		if err := json.Unmarshal([]byte(r.Payload), &proof); err != nil {
			return nil, err
		}
		contributions = append(contributions, model.ProofContribution{IdpID: r.IdpID, PrivateProof: proof})
	}
	return contributions, nil
}

func (gs *GormStore) RemoveProofContributions(ctx context.Context, requestID string) error {
	return gs.conn(ctx).Where("request_id = ?", requestID).Delete(&PrivateProofContribution{}).Error
}

func (gs *GormStore) MarkDispatchPending(ctx context.Context, requestID string) error {
	return gs.upsert(ctx, &PendingDispatch{RequestID: requestID, CreatedAt: time.Now().UTC()})
}

func (gs *GormStore) PendingDispatches(ctx context.Context) ([]string, error) {
	var requestIDs []string
	err := gs.conn(ctx).Model(&PendingDispatch{}).Order("created_at").Pluck("request_id", &requestIDs).Error
	return requestIDs, err
}

func (gs *GormStore) RemoveDispatchPending(ctx context.Context, requestID string) error {
	return gs.conn(ctx).Where("request_id = ?", requestID).Delete(&PendingDispatch{}).Error
}

func (gs *GormStore) SaveChallenge(ctx context.Context, requestID, challenge string) error {
	return gs.upsert(ctx, &Challenge{RequestID: requestID, Value: challenge})
}

func (gs *GormStore) GetChallenge(ctx context.Context, requestID string) (string, bool, error) {
	var record Challenge
	found, err := gs.first(ctx, &record, "request_id = ?", requestID)
	return record.Value, found, err
}

func (gs *GormStore) RemoveChallenge(ctx context.Context, requestID string) error {
	return gs.conn(ctx).Where("request_id = ?", requestID).Delete(&Challenge{}).Error
}

func (gs *GormStore) SavePendingIdentity(ctx context.Context, requestID string, identity model.PendingIdentity) error {
	payload, err := json.Marshal(identity)
	if err != nil {
		return err
	}
	return gs.upsert(ctx, &PendingIdentity{RequestID: requestID, Payload: string(payload)})
}

func (gs *GormStore) GetPendingIdentity(ctx context.Context, requestID string) (model.PendingIdentity, bool, error) {
	var record PendingIdentity
	found, err := gs.first(ctx, &record, "request_id = ?", requestID)
	if err != nil || !found {
		return model.PendingIdentity{}, found, err
	}

	var identity model.PendingIdentity
	if err := json.Unmarshal([]byte(record.Payload), &identity); err != nil {
		return model.PendingIdentity{}, false, err
	}
	return identity, true, nil
}

func (gs *GormStore) RemovePendingIdentity(ctx context.Context, requestID string) error {
	return gs.conn(ctx).Where("request_id = ?", requestID).Delete(&PendingIdentity{}).Error
}

func (gs *GormStore) SaveSession(ctx context.Context, session model.OnboardingSession) error {
	if session.UpdatedAt.IsZero() {
		session.UpdatedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return gs.upsert(ctx, &OnboardingSession{
		RequestID: session.RequestID,
		Phase:     string(session.Phase),
		Payload:   string(payload),
		UpdatedAt: session.UpdatedAt,
	})
}

func (gs *GormStore) GetSession(ctx context.Context, requestID string) (model.OnboardingSession, bool, error) {
	var record OnboardingSession
	found, err := gs.first(ctx, &record, "request_id = ?", requestID)
	if err != nil || !found {
		return model.OnboardingSession{}, found, err
	}

	session, err := decodeSession(record)
	if err != nil {
		return model.OnboardingSession{}, false, err
	}
	return session, true, nil
}

func (gs *GormStore) DeleteSession(ctx context.Context, requestID string) error {
	return gs.conn(ctx).Where("request_id = ?", requestID).Delete(&OnboardingSession{}).Error
}

func (gs *GormStore) SessionsInPhases(ctx context.Context, phases ...model.OnboardingPhase) ([]model.OnboardingSession, error) {
	if len(phases) == 0 {
		return nil, nil
	}

	names := make([]string, 0, len(phases))
	for _, p := range phases {
		names = append(names, string(p))
	}

	var records []OnboardingSession
	if err := gs.conn(ctx).Where("phase IN ?", names).Order("updated_at").Find(&records).Error; err != nil {
		return nil, err
	}

	sessions := make([]model.OnboardingSession, 0, len(records))
	for _, r := range records {
		session, err := decodeSession(r)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, nil
}

func decodeSession(record OnboardingSession) (model.OnboardingSession, error) {
	var session model.OnboardingSession
	if err := json.Unmarshal([]byte(record.Payload), &session); err != nil {
		return model.OnboardingSession{}, err
	}
	return session, nil
}

func (gs *GormStore) SetCallbackURL(ctx context.Context, nodeID string, purpose model.CallbackPurpose, url string) error {
	return gs.upsert(ctx, &CallbackURL{NodeID: nodeID, Purpose: string(purpose), URL: url})
}

func (gs *GormStore) GetCallbackURL(ctx context.Context, nodeID string, purpose model.CallbackPurpose) (string, bool, error) {
	var record CallbackURL
	found, err := gs.first(ctx, &record, "node_id = ? AND purpose = ?", nodeID, string(purpose))
	return record.URL, found, err
}
