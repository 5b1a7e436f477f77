package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"guild-chat-service/internal/models"
	"guild-chat-service/internal/repositories"
)

type TopologyRepositoryMock struct {
	mock.Mock
}

func (m *TopologyRepositoryMock) CreateGuild(ctx context.Context, ownerID int64, name string, description *string) (models.Guild, error) {
	args := m.Called(ctx, ownerID, name, description)
	var guild models.Guild
	if val := args.Get(0); val != nil {
		guild = val.(models.Guild)
	}
	return guild, args.Error(1)
}

func (m *TopologyRepositoryMock) ListGuildsForUser(ctx context.Context, userID int64) ([]models.Guild, error) {
	args := m.Called(ctx, userID)
	var guilds []models.Guild
	if val := args.Get(0); val != nil {
		guilds = val.([]models.Guild)
	}
	return guilds, args.Error(1)
}

func (m *TopologyRepositoryMock) GetGuildHierarchy(ctx context.Context, guildID int64) (models.GuildHierarchy, error) {
	args := m.Called(ctx, guildID)
	var hierarchy models.GuildHierarchy
	if val := args.Get(0); val != nil {
		hierarchy = val.(models.GuildHierarchy)
	}
	return hierarchy, args.Error(1)
}

func (m *TopologyRepositoryMock) CreateChannel(ctx context.Context, params repositories.CreateChannelParams) (models.Channel, error) {
	args := m.Called(ctx, params)
	var channel models.Channel
	if val := args.Get(0); val != nil {
		channel = val.(models.Channel)
	}
	return channel, args.Error(1)
}

func (m *TopologyRepositoryMock) GetChannel(ctx context.Context, channelID int64) (models.Channel, error) {
	args := m.Called(ctx, channelID)
	var channel models.Channel
	if val := args.Get(0); val != nil {
		channel = val.(models.Channel)
	}
	return channel, args.Error(1)
}

func (m *TopologyRepositoryMock) RenameChannel(ctx context.Context, channelID int64, name string) error {
	args := m.Called(ctx, channelID, name)
	return args.Error(0)
}

func (m *TopologyRepositoryMock) GetOrCreateDM(ctx context.Context, userA, userB int64) (models.Channel, error) {
	args := m.Called(ctx, userA, userB)
	var channel models.Channel
	if val := args.Get(0); val != nil {
		channel = val.(models.Channel)
	}
	return channel, args.Error(1)
}

func (m *TopologyRepositoryMock) ListDMsForUser(ctx context.Context, userID int64) ([]models.Channel, error) {
	args := m.Called(ctx, userID)
	var channels []models.Channel
	if val := args.Get(0); val != nil {
		channels = val.([]models.Channel)
	}
	return channels, args.Error(1)
}

func (m *TopologyRepositoryMock) ListPublicChannels(ctx context.Context) ([]models.Channel, error) {
	args := m.Called(ctx)
	var channels []models.Channel
	if val := args.Get(0); val != nil {
		channels = val.([]models.Channel)
	}
	return channels, args.Error(1)
}

func (m *TopologyRepositoryMock) ListGuildChannels(ctx context.Context, guildID int64) ([]models.Channel, error) {
	args := m.Called(ctx, guildID)
	var channels []models.Channel
	if val := args.Get(0); val != nil {
		channels = val.([]models.Channel)
	}
	return channels, args.Error(1)
}

func (m *TopologyRepositoryMock) TogglePrivacy(ctx context.Context, channelID int64, isPrivate bool) (models.Channel, error) {
	args := m.Called(ctx, channelID, isPrivate)
	var channel models.Channel
	if val := args.Get(0); val != nil {
		channel = val.(models.Channel)
	}
	return channel, args.Error(1)
}

func (m *TopologyRepositoryMock) IsChannelMember(ctx context.Context, channel models.Channel, userID int64) (bool, error) {
	args := m.Called(ctx, channel, userID)
	return args.Bool(0), args.Error(1)
}

func (m *TopologyRepositoryMock) IsChannelAdmin(ctx context.Context, channel models.Channel, userID int64) (bool, error) {
	args := m.Called(ctx, channel, userID)
	return args.Bool(0), args.Error(1)
}

func (m *TopologyRepositoryMock) AddParticipant(ctx context.Context, channelID, userID int64, role models.ParticipantRole) error {
	args := m.Called(ctx, channelID, userID, role)
	return args.Error(0)
}

func (m *TopologyRepositoryMock) AddGuildMember(ctx context.Context, guildID, userID int64) error {
	args := m.Called(ctx, guildID, userID)
	return args.Error(0)
}

func (m *TopologyRepositoryMock) ListChannelMembers(ctx context.Context, channel models.Channel) ([]models.ChannelMember, error) {
	args := m.Called(ctx, channel)
	var members []models.ChannelMember
	if val := args.Get(0); val != nil {
		members = val.([]models.ChannelMember)
	}
	return members, args.Error(1)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) CreateMessage(ctx context.Context, params repositories.CreateMessageParams) (models.Message, error) {
	args := m.Called(ctx, params)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) GetMessage(ctx context.Context, messageID int64) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) ListChannelMessages(ctx context.Context, channelID int64, limit int) ([]models.HistoryMessage, error) {
	args := m.Called(ctx, channelID, limit)
	var msgs []models.HistoryMessage
	if val := args.Get(0); val != nil {
		msgs = val.([]models.HistoryMessage)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) EditMessage(ctx context.Context, messageID int64, newText string) error {
	args := m.Called(ctx, messageID, newText)
	return args.Error(0)
}

func (m *MessageRepositoryMock) SoftDeleteMessage(ctx context.Context, messageID int64) error {
	args := m.Called(ctx, messageID)
	return args.Error(0)
}

type AliasRepositoryMock struct {
	mock.Mock
}

func (m *AliasRepositoryMock) GetAliasByUser(ctx context.Context, userID int64) (models.AnonymousAlias, error) {
	args := m.Called(ctx, userID)
	var alias models.AnonymousAlias
	if val := args.Get(0); val != nil {
		alias = val.(models.AnonymousAlias)
	}
	return alias, args.Error(1)
}

func (m *AliasRepositoryMock) GetAliasOwner(ctx context.Context, aliasID string) (int64, error) {
	args := m.Called(ctx, aliasID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *AliasRepositoryMock) InsertAlias(ctx context.Context, aliasID string, userID int64) error {
	args := m.Called(ctx, aliasID, userID)
	return args.Error(0)
}

type ProfileRepositoryMock struct {
	mock.Mock
}

func (m *ProfileRepositoryMock) UpsertProfile(ctx context.Context, profile models.UserProfile) error {
	args := m.Called(ctx, profile)
	return args.Error(0)
}

func (m *ProfileRepositoryMock) GetProfile(ctx context.Context, userID int64) (models.UserProfile, error) {
	args := m.Called(ctx, userID)
	var profile models.UserProfile
	if val := args.Get(0); val != nil {
		profile = val.(models.UserProfile)
	}
	return profile, args.Error(1)
}

func (m *ProfileRepositoryMock) UpsertPlatformRole(ctx context.Context, userID int64, role string) error {
	args := m.Called(ctx, userID, role)
	return args.Error(0)
}

type InvitationRepositoryMock struct {
	mock.Mock
}

func (m *InvitationRepositoryMock) CreateInvitation(ctx context.Context, invite models.Invitation) error {
	args := m.Called(ctx, invite)
	return args.Error(0)
}

func (m *InvitationRepositoryMock) GetInvitation(ctx context.Context, inviteID int64) (models.Invitation, error) {
	args := m.Called(ctx, inviteID)
	var invite models.Invitation
	if val := args.Get(0); val != nil {
		invite = val.(models.Invitation)
	}
	return invite, args.Error(1)
}

func (m *InvitationRepositoryMock) ListPendingForUser(ctx context.Context, userID int64) ([]models.Invitation, error) {
	args := m.Called(ctx, userID)
	var invites []models.Invitation
	if val := args.Get(0); val != nil {
		invites = val.([]models.Invitation)
	}
	return invites, args.Error(1)
}

func (m *InvitationRepositoryMock) UpdateStatus(ctx context.Context, inviteID int64, status string) error {
	args := m.Called(ctx, inviteID, status)
	return args.Error(0)
}

type AuditRepositoryMock struct {
	mock.Mock
}

func (m *AuditRepositoryMock) Append(ctx context.Context, entry models.AuditLogEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *AuditRepositoryMock) ListForChannel(ctx context.Context, channelID int64, limit int) ([]models.AuditLogEntry, error) {
	args := m.Called(ctx, channelID, limit)
	var entries []models.AuditLogEntry
	if val := args.Get(0); val != nil {
		entries = val.([]models.AuditLogEntry)
	}
	return entries, args.Error(1)
}

type BroadcasterMock struct {
	mock.Mock
}

func (m *BroadcasterMock) BroadcastEvent(channelID int64, event models.ChatEvent, excludeConnID string) {
	m.Called(channelID, event, excludeConnID)
}

var _ repositories.TopologyRepository = (*TopologyRepositoryMock)(nil)
var _ repositories.MessageRepository = (*MessageRepositoryMock)(nil)
var _ repositories.AliasRepository = (*AliasRepositoryMock)(nil)
var _ repositories.ProfileRepository = (*ProfileRepositoryMock)(nil)
var _ repositories.InvitationRepository = (*InvitationRepositoryMock)(nil)
var _ repositories.AuditRepository = (*AuditRepositoryMock)(nil)
