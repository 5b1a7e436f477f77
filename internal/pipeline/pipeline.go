package pipeline

import (
	"context"
	"fmt"
	"unicode/utf8"

	"guild-chat-service/internal/identity"
	"guild-chat-service/internal/models"
	"guild-chat-service/internal/observability"
	"guild-chat-service/internal/ratelimit"
	"guild-chat-service/internal/repositories"
	"guild-chat-service/internal/telemetry"
)

// MaxContentRunes is the upper bound on message text length.
const MaxContentRunes = 4000

const defaultHistoryLimit = 50

// Broadcaster fans one event out to the live connections subscribed to a
// channel, optionally excluding the originating connection.
type Broadcaster interface {
	BroadcastEvent(channelID int64, event models.ChatEvent, excludeConnID string)
}

// SubmitRequest carries one inbound message through the pipeline.
type SubmitRequest struct {
	UserID     int64
	Username   string
	AvatarURL  string
	ChannelID  int64
	Content    string
	Attachment *models.Attachment
	ReplyToID  *int64
	IsAnon     bool
	// ConnID is the originating connection; it is excluded from fan-out
	// and receives the acknowledgement instead.
	ConnID string
}

// Pipeline orchestrates rate limiting, validation, identity resolution,
// persistence and fan-out for message submit/edit/delete. Each submission
// runs synchronously end-to-end; once persistence has started it runs to
// completion or reports failure, never cancelled mid-flight.
type Pipeline struct {
	limiter     *ratelimit.Limiter
	anonymizer  *identity.Anonymizer
	topology    repositories.TopologyRepository
	messages    repositories.MessageRepository
	broadcaster Broadcaster
	audit       *telemetry.Recorder
}

// New constructs a Pipeline. The audit recorder may be nil.
func New(limiter *ratelimit.Limiter, anonymizer *identity.Anonymizer, topology repositories.TopologyRepository,
	messages repositories.MessageRepository, broadcaster Broadcaster, audit *telemetry.Recorder) *Pipeline {
	return &Pipeline{
		limiter:     limiter,
		anonymizer:  anonymizer,
		topology:    topology,
		messages:    messages,
		broadcaster: broadcaster,
		audit:       audit,
	}
}

// Submit ingests a message: rate-limit, validate, resolve identity,
// persist, broadcast to everyone else in the channel, and return the view
// the caller acknowledges with. Failures before persistence have zero side
// effects.
func (p *Pipeline) Submit(ctx context.Context, req SubmitRequest) (models.MessageView, error) {
	if !p.limiter.Check(ratelimit.Key(req.ChannelID, req.UserID)) {
		observability.IncIngest("rate_limited")
		return models.MessageView{}, ErrRateLimited
	}

	if err := validateContent(req.Content, req.Attachment); err != nil {
		observability.IncIngest("invalid_content")
		return models.MessageView{}, err
	}

	channel, err := p.topology.GetChannel(ctx, req.ChannelID)
	if err != nil {
		observability.IncIngest("not_found")
		return models.MessageView{}, err
	}
	member, err := p.topology.IsChannelMember(ctx, channel, req.UserID)
	if err != nil {
		return models.MessageView{}, err
	}
	if !member {
		observability.IncIngest("unauthorized")
		return models.MessageView{}, ErrUnauthorized
	}

	if req.ReplyToID != nil {
		target, err := p.messages.GetMessage(ctx, *req.ReplyToID)
		if err != nil || target.ChannelID != req.ChannelID {
			observability.IncIngest("invalid_content")
			return models.MessageView{}, fmt.Errorf("%w: reply target must exist in the same channel", ErrInvalidContent)
		}
	}

	// The alias is recorded on every row; the per-submission anon flag
	// only decides how the sender is presented.
	aliasID, err := p.anonymizer.GetOrCreateAlias(ctx, req.UserID)
	if err != nil {
		return models.MessageView{}, err
	}
	senderType := models.SenderUser
	if req.IsAnon {
		senderType = models.SenderAnon
	}

	var fileURL *string
	if req.Attachment != nil {
		fileURL = &req.Attachment.URL
	}
	msg, err := p.messages.CreateMessage(ctx, repositories.CreateMessageParams{
		ChannelID:  req.ChannelID,
		AliasID:    aliasID,
		SenderType: senderType,
		Text:       req.Content,
		FileURL:    fileURL,
		ReplyToID:  req.ReplyToID,
	})
	if err != nil {
		observability.IncIngest("persistence_error")
		return models.MessageView{}, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	view := p.buildView(msg, req.UserID, req.Username, req.AvatarURL)
	p.broadcaster.BroadcastEvent(req.ChannelID, models.ChatEvent{
		Type:    models.EventReceiveMessage,
		Message: &view,
	}, req.ConnID)
	observability.IncIngest("acknowledged")

	ack := view
	ack.Self = true
	return ack, nil
}

// Edit replaces a message's text. Only the owner, resolved server-side
// through the alias, may edit; a mismatch mutates nothing.
func (p *Pipeline) Edit(ctx context.Context, userID, messageID int64, newContent string) error {
	if newContent == "" || utf8.RuneCountInString(newContent) > MaxContentRunes {
		return ErrInvalidContent
	}

	msg, err := p.messages.GetMessage(ctx, messageID)
	if err != nil {
		return err
	}
	owner, err := p.anonymizer.ResolveOwner(ctx, msg.AliasID)
	if err != nil {
		return err
	}
	if owner != userID {
		return ErrUnauthorized
	}

	if err := p.messages.EditMessage(ctx, messageID, newContent); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	p.broadcaster.BroadcastEvent(msg.ChannelID, models.ChatEvent{
		Type:       models.EventMessageUpdated,
		ChannelID:  msg.ChannelID,
		MessageID:  messageID,
		NewContent: newContent,
	}, "")
	return nil
}

// Delete soft-deletes a message. The owner or a channel admin may delete;
// the row is never physically removed.
func (p *Pipeline) Delete(ctx context.Context, userID, messageID int64) error {
	msg, err := p.messages.GetMessage(ctx, messageID)
	if err != nil {
		return err
	}
	owner, err := p.anonymizer.ResolveOwner(ctx, msg.AliasID)
	if err != nil {
		return err
	}
	if owner != userID {
		channel, err := p.topology.GetChannel(ctx, msg.ChannelID)
		if err != nil {
			return err
		}
		admin, err := p.topology.IsChannelAdmin(ctx, channel, userID)
		if err != nil {
			return err
		}
		if !admin {
			return ErrUnauthorized
		}
	}

	if err := p.messages.SoftDeleteMessage(ctx, messageID); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	p.broadcaster.BroadcastEvent(msg.ChannelID, models.ChatEvent{
		Type:      models.EventMessageDeleted,
		ChannelID: msg.ChannelID,
		MessageID: messageID,
	}, "")
	p.recordAudit(ctx, msg.ChannelID, userID, "message_deleted", fmt.Sprintf("message %d", messageID))
	return nil
}

// History returns the channel's visible messages oldest-first, shaped for
// the given viewer. Soft-deleted rows never appear; anonymous rows never
// expose the owner.
func (p *Pipeline) History(ctx context.Context, channelID, viewerID int64) ([]models.MessageView, error) {
	channel, err := p.topology.GetChannel(ctx, channelID)
	if err != nil {
		return nil, err
	}
	member, err := p.topology.IsChannelMember(ctx, channel, viewerID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, ErrUnauthorized
	}

	rows, err := p.messages.ListChannelMessages(ctx, channelID, defaultHistoryLimit)
	if err != nil {
		return nil, err
	}

	views := make([]models.MessageView, 0, len(rows))
	for _, row := range rows {
		username, avatar := "", ""
		if row.Username != nil {
			username = *row.Username
		}
		if row.AvatarURL != nil {
			avatar = *row.AvatarURL
		}
		view := p.buildView(row.Message, row.OwnerID, username, avatar)
		view.Self = row.OwnerID == viewerID
		views = append(views, view)
	}
	return views, nil
}

// buildView shapes the public-facing payload. An anonymous sender's real
// identity never appears in it.
func (p *Pipeline) buildView(msg models.Message, ownerID int64, username, avatar string) models.MessageView {
	view := models.MessageView{
		MessageID:  msg.ID,
		ChannelID:  msg.ChannelID,
		AliasID:    msg.AliasID,
		SenderType: msg.SenderType,
		Content:    msg.Text,
		FileURL:    msg.FileURL,
		ReplyToID:  msg.ReplyToID,
		IsEdited:   msg.IsEdited,
		SentAt:     msg.SentAt,
	}
	if msg.SenderType == models.SenderAnon {
		view.Profile = models.Profile{Name: models.AnonymousDisplayName, Pic: "default.jpg"}
		return view
	}
	sender := ownerID
	view.SenderID = &sender
	pic := avatar
	if pic == "" {
		pic = "default.jpg"
	}
	view.Profile = models.Profile{Name: username, Pic: pic}
	return view
}

func validateContent(content string, attachment *models.Attachment) error {
	if content == "" && attachment == nil {
		return fmt.Errorf("%w: message cannot be empty", ErrInvalidContent)
	}
	if utf8.RuneCountInString(content) > MaxContentRunes {
		return fmt.Errorf("%w: message too long", ErrInvalidContent)
	}
	return nil
}

func (p *Pipeline) recordAudit(ctx context.Context, channelID, userID int64, action, details string) {
	if p.audit == nil {
		return
	}
	cid := channelID
	p.audit.Record(ctx, models.AuditLogEntry{ChannelID: &cid, UserID: userID, ActionType: action, Details: details})
}
