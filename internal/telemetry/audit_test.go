package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"guild-chat-service/internal/mocks"
	"guild-chat-service/internal/models"
)

func TestRecordPersistsAndPublishes(t *testing.T) {
	repo := new(mocks.AuditRepositoryMock)
	publisher := new(mocks.PublisherMock)
	recorder := NewRecorder(repo, publisher, "audit.chat", "guild-chat-service", "test")

	entry := models.AuditLogEntry{UserID: 42, ActionType: "message_deleted", Details: "message 9"}
	repo.On("Append", mock.Anything, entry).Return(nil).Once()
	publisher.On("Publish", mock.Anything, "audit.chat", mock.MatchedBy(func(env AuditEnvelope) bool {
		return env.EventType == "audit_log" && env.Payload.ActionType == "message_deleted"
	})).Return(nil).Once()

	recorder.Record(context.Background(), entry)

	repo.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestRecordSurvivesFailures(t *testing.T) {
	repo := new(mocks.AuditRepositoryMock)
	publisher := new(mocks.PublisherMock)
	recorder := NewRecorder(repo, publisher, "audit.chat", "guild-chat-service", "test")

	entry := models.AuditLogEntry{UserID: 42, ActionType: "audit_test"}
	repo.On("Append", mock.Anything, entry).Return(assert.AnError).Once()
	publisher.On("Publish", mock.Anything, "audit.chat", mock.Anything).Return(assert.AnError).Once()

	// Neither failure may propagate.
	recorder.Record(context.Background(), entry)
	repo.AssertExpectations(t)
}

func TestRecordNilRecorder(t *testing.T) {
	var recorder *Recorder
	recorder.Record(context.Background(), models.AuditLogEntry{UserID: 1})
}
