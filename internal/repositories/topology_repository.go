package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"guild-chat-service/internal/models"
)

var (
	ErrGuildNotFound   = errors.New("guild not found")
	ErrChannelNotFound = errors.New("channel not found")
)

// CreateChannelParams describes a new channel. A nil GuildID creates a
// standalone channel whose creator is auto-enrolled as admin participant.
type CreateChannelParams struct {
	GuildID    *int64
	CategoryID *int64
	Name       string
	Type       string
	Topic      *string
	IsPrivate  bool
	CreatorID  int64
}

// TopologyRepository owns the guild/category/channel/DM hierarchy and its
// membership rows.
type TopologyRepository interface {
	CreateGuild(ctx context.Context, ownerID int64, name string, description *string) (models.Guild, error)
	ListGuildsForUser(ctx context.Context, userID int64) ([]models.Guild, error)
	GetGuildHierarchy(ctx context.Context, guildID int64) (models.GuildHierarchy, error)
	CreateChannel(ctx context.Context, params CreateChannelParams) (models.Channel, error)
	GetChannel(ctx context.Context, channelID int64) (models.Channel, error)
	RenameChannel(ctx context.Context, channelID int64, name string) error
	GetOrCreateDM(ctx context.Context, userA, userB int64) (models.Channel, error)
	ListDMsForUser(ctx context.Context, userID int64) ([]models.Channel, error)
	ListPublicChannels(ctx context.Context) ([]models.Channel, error)
	ListGuildChannels(ctx context.Context, guildID int64) ([]models.Channel, error)
	TogglePrivacy(ctx context.Context, channelID int64, isPrivate bool) (models.Channel, error)
	IsChannelMember(ctx context.Context, channel models.Channel, userID int64) (bool, error)
	IsChannelAdmin(ctx context.Context, channel models.Channel, userID int64) (bool, error)
	AddParticipant(ctx context.Context, channelID, userID int64, role models.ParticipantRole) error
	AddGuildMember(ctx context.Context, guildID, userID int64) error
	ListChannelMembers(ctx context.Context, channel models.Channel) ([]models.ChannelMember, error)
}

const channelColumns = `id, guild_id, category_id, name, topic, type, is_private, is_global, created_by, rules, icon, dm_key, created_at`

// TopologyRepo is a sqlx implementation of TopologyRepository.
type TopologyRepo struct {
	db *sqlx.DB
}

// NewTopologyRepo constructs a TopologyRepo.
func NewTopologyRepo(db *sqlx.DB) *TopologyRepo {
	return &TopologyRepo{db: db}
}

// CreateGuild atomically creates the guild, its default category and
// channel, and the owner's membership. Any failure rolls the whole
// operation back.
func (r *TopologyRepo) CreateGuild(ctx context.Context, ownerID int64, name string, description *string) (models.Guild, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Guild{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var guild models.Guild
	if err = tx.QueryRowxContext(ctx, `INSERT INTO guilds (owner_id, name, description) VALUES ($1, $2, $3)
        RETURNING id, owner_id, name, description, icon, created_at`, ownerID, name, description).
		StructScan(&guild); err != nil {
		return models.Guild{}, err
	}

	if _, err = tx.ExecContext(ctx, `INSERT INTO guild_members (guild_id, user_id) VALUES ($1, $2)`, guild.ID, ownerID); err != nil {
		return models.Guild{}, err
	}

	var categoryID int64
	if err = tx.QueryRowxContext(ctx, `INSERT INTO categories (guild_id, name, position) VALUES ($1, 'Text Channels', 0) RETURNING id`, guild.ID).
		Scan(&categoryID); err != nil {
		return models.Guild{}, err
	}

	if _, err = tx.ExecContext(ctx, `INSERT INTO channels (guild_id, category_id, name, type, created_by) VALUES ($1, $2, 'general', 'text', $3)`,
		guild.ID, categoryID, ownerID); err != nil {
		return models.Guild{}, err
	}

	if err = tx.Commit(); err != nil {
		return models.Guild{}, err
	}
	return guild, nil
}

// ListGuildsForUser returns guilds the user belongs to.
func (r *TopologyRepo) ListGuildsForUser(ctx context.Context, userID int64) ([]models.Guild, error) {
	var guilds []models.Guild
	err := r.db.SelectContext(ctx, &guilds, `SELECT g.id, g.owner_id, g.name, g.description, g.icon, g.created_at
        FROM guilds g INNER JOIN guild_members gm ON gm.guild_id = g.id
        WHERE gm.user_id=$1 ORDER BY g.created_at DESC`, userID)
	return guilds, err
}

// GetGuildHierarchy assembles the categories-with-channels view for a
// guild, uncategorized channels first.
func (r *TopologyRepo) GetGuildHierarchy(ctx context.Context, guildID int64) (models.GuildHierarchy, error) {
	var guild models.Guild
	err := r.db.GetContext(ctx, &guild, `SELECT id, owner_id, name, description, icon, created_at FROM guilds WHERE id=$1`, guildID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.GuildHierarchy{}, ErrGuildNotFound
	}
	if err != nil {
		return models.GuildHierarchy{}, err
	}

	var categories []models.Category
	if err := r.db.SelectContext(ctx, &categories, `SELECT id, guild_id, name, position FROM categories WHERE guild_id=$1 ORDER BY position`, guildID); err != nil {
		return models.GuildHierarchy{}, err
	}

	channels, err := r.ListGuildChannels(ctx, guildID)
	if err != nil {
		return models.GuildHierarchy{}, err
	}

	hierarchy := models.GuildHierarchy{Guild: guild}
	var uncategorized []models.Channel
	for _, ch := range channels {
		if ch.CategoryID == nil {
			uncategorized = append(uncategorized, ch)
		}
	}
	if len(uncategorized) > 0 {
		hierarchy.Hierarchy = append(hierarchy.Hierarchy, models.CategoryGroup{Name: "Channels", Channels: uncategorized})
	}
	for _, cat := range categories {
		group := models.CategoryGroup{ID: &cat.ID, Name: cat.Name}
		for _, ch := range channels {
			if ch.CategoryID != nil && *ch.CategoryID == cat.ID {
				group.Channels = append(group.Channels, ch)
			}
		}
		hierarchy.Hierarchy = append(hierarchy.Hierarchy, group)
	}
	return hierarchy, nil
}

// CreateChannel creates a channel; standalone channels enroll their
// creator as admin participant in the same transaction.
func (r *TopologyRepo) CreateChannel(ctx context.Context, params CreateChannelParams) (models.Channel, error) {
	if params.Type == "" {
		params.Type = "text"
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Channel{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var channel models.Channel
	if err = tx.QueryRowxContext(ctx, `INSERT INTO channels (guild_id, category_id, name, topic, type, is_private, created_by)
        VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING `+channelColumns,
		params.GuildID, params.CategoryID, params.Name, params.Topic, params.Type, params.IsPrivate, params.CreatorID).
		StructScan(&channel); err != nil {
		if isForeignKeyViolation(err, "guild_id") {
			err = ErrGuildNotFound
		}
		return models.Channel{}, err
	}

	if params.GuildID == nil {
		if _, err = tx.ExecContext(ctx, `INSERT INTO channel_participants (channel_id, user_id, role) VALUES ($1, $2, 'admin')`,
			channel.ID, params.CreatorID); err != nil {
			return models.Channel{}, err
		}
	}

	if err = tx.Commit(); err != nil {
		return models.Channel{}, err
	}
	return channel, nil
}

// GetChannel fetches a channel by id.
func (r *TopologyRepo) GetChannel(ctx context.Context, channelID int64) (models.Channel, error) {
	var channel models.Channel
	err := r.db.GetContext(ctx, &channel, `SELECT `+channelColumns+` FROM channels WHERE id=$1`, channelID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Channel{}, ErrChannelNotFound
	}
	return channel, err
}

// RenameChannel updates the channel name.
func (r *TopologyRepo) RenameChannel(ctx context.Context, channelID int64, name string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE channels SET name=$2 WHERE id=$1`, channelID, name)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrChannelNotFound
	}
	return nil
}

// GetOrCreateDM returns the single DM channel for the unordered user pair,
// creating it on first use. The pair key's uniqueness constraint makes
// concurrent near-simultaneous calls converge: the insert loser re-reads
// the winner's row.
func (r *TopologyRepo) GetOrCreateDM(ctx context.Context, userA, userB int64) (models.Channel, error) {
	if userA == userB {
		return models.Channel{}, errors.New("cannot open dm with self")
	}
	lo, hi := userA, userB
	if lo > hi {
		lo, hi = hi, lo
	}
	dmKey := fmt.Sprintf("%d:%d", lo, hi)

	var channel models.Channel
	err := r.db.GetContext(ctx, &channel, `SELECT `+channelColumns+` FROM channels WHERE dm_key=$1`, dmKey)
	if err == nil {
		return channel, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.Channel{}, err
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Channel{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	err = tx.QueryRowxContext(ctx, `INSERT INTO channels (name, type, is_private, created_by, dm_key)
        VALUES ('DM', 'text', TRUE, $1, $2) ON CONFLICT (dm_key) DO NOTHING RETURNING `+channelColumns,
		userA, dmKey).StructScan(&channel)
	if errors.Is(err, sql.ErrNoRows) {
		// Lost the race; the other caller's row is authoritative.
		tx.Rollback()
		err = r.db.GetContext(ctx, &channel, `SELECT `+channelColumns+` FROM channels WHERE dm_key=$1`, dmKey)
		return channel, err
	}
	if err != nil {
		return models.Channel{}, err
	}

	if _, err = tx.ExecContext(ctx, `INSERT INTO channel_participants (channel_id, user_id, role) VALUES ($1, $2, 'admin')`, channel.ID, userA); err != nil {
		return models.Channel{}, err
	}
	if _, err = tx.ExecContext(ctx, `INSERT INTO channel_participants (channel_id, user_id, role) VALUES ($1, $2, 'member')`, channel.ID, userB); err != nil {
		return models.Channel{}, err
	}

	if err = tx.Commit(); err != nil {
		return models.Channel{}, err
	}
	return channel, nil
}

// ListDMsForUser returns the user's DM and private-group channels.
func (r *TopologyRepo) ListDMsForUser(ctx context.Context, userID int64) ([]models.Channel, error) {
	var channels []models.Channel
	err := r.db.SelectContext(ctx, &channels, `SELECT `+prefixedChannelColumns("c")+` FROM channels c
        INNER JOIN channel_participants cp ON cp.channel_id = c.id
        WHERE cp.user_id=$1 AND c.guild_id IS NULL AND c.is_private = TRUE
        ORDER BY c.created_at DESC`, userID)
	return channels, err
}

// ListPublicChannels returns standalone public channels, the designated
// global channel included.
func (r *TopologyRepo) ListPublicChannels(ctx context.Context) ([]models.Channel, error) {
	var channels []models.Channel
	err := r.db.SelectContext(ctx, &channels, `SELECT `+channelColumns+` FROM channels
        WHERE guild_id IS NULL AND is_private = FALSE ORDER BY created_at`)
	return channels, err
}

// ListGuildChannels returns every channel of a guild.
func (r *TopologyRepo) ListGuildChannels(ctx context.Context, guildID int64) ([]models.Channel, error) {
	var channels []models.Channel
	err := r.db.SelectContext(ctx, &channels, `SELECT `+channelColumns+` FROM channels WHERE guild_id=$1 ORDER BY id`, guildID)
	return channels, err
}

// TogglePrivacy flips the channel's scope and re-asserts, in the same
// transaction, that the creator remains an admin participant.
func (r *TopologyRepo) TogglePrivacy(ctx context.Context, channelID int64, isPrivate bool) (models.Channel, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Channel{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var channel models.Channel
	err = tx.QueryRowxContext(ctx, `UPDATE channels SET is_private=$2 WHERE id=$1 RETURNING `+channelColumns, channelID, isPrivate).
		StructScan(&channel)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrChannelNotFound
		return models.Channel{}, err
	}
	if err != nil {
		return models.Channel{}, err
	}

	if _, err = tx.ExecContext(ctx, `INSERT INTO channel_participants (channel_id, user_id, role) VALUES ($1, $2, 'admin')
        ON CONFLICT (channel_id, user_id) DO UPDATE SET role='admin'`, channel.ID, channel.CreatedBy); err != nil {
		return models.Channel{}, err
	}

	if err = tx.Commit(); err != nil {
		return models.Channel{}, err
	}
	return channel, nil
}

// IsChannelMember resolves membership by channel scope: guild channels via
// guild_members, private channels via channel_participants, standalone
// public channels are open to every authenticated user.
func (r *TopologyRepo) IsChannelMember(ctx context.Context, channel models.Channel, userID int64) (bool, error) {
	if channel.GuildID != nil {
		var exists bool
		err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM guild_members WHERE guild_id=$1 AND user_id=$2)`, *channel.GuildID, userID)
		return exists, err
	}
	if channel.IsPrivate {
		var exists bool
		err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM channel_participants WHERE channel_id=$1 AND user_id=$2)`, channel.ID, userID)
		return exists, err
	}
	return true, nil
}

// IsChannelAdmin reports whether the user holds moderation rights over the
// channel: guild channels defer to the guild owner, standalone channels to
// an admin participant row.
func (r *TopologyRepo) IsChannelAdmin(ctx context.Context, channel models.Channel, userID int64) (bool, error) {
	if channel.GuildID != nil {
		var exists bool
		err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM guilds WHERE id=$1 AND owner_id=$2)`, *channel.GuildID, userID)
		return exists, err
	}
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM channel_participants WHERE channel_id=$1 AND user_id=$2 AND role='admin')`, channel.ID, userID)
	return exists, err
}

// AddParticipant enrolls a user in a non-guild channel, keeping an
// existing row's role.
func (r *TopologyRepo) AddParticipant(ctx context.Context, channelID, userID int64, role models.ParticipantRole) error {
	if !role.Valid() {
		role = models.RoleMember
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO channel_participants (channel_id, user_id, role) VALUES ($1, $2, $3)
        ON CONFLICT (channel_id, user_id) DO NOTHING`, channelID, userID, role)
	return err
}

// AddGuildMember enrolls a user in a guild.
func (r *TopologyRepo) AddGuildMember(ctx context.Context, guildID, userID int64) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO guild_members (guild_id, user_id) VALUES ($1, $2)
        ON CONFLICT (guild_id, user_id) DO NOTHING`, guildID, userID)
	return err
}

// ListChannelMembers resolves the membership listing by scope. The
// designated global channel additionally includes every platform-admin
// user whether or not they hold an explicit participant row.
func (r *TopologyRepo) ListChannelMembers(ctx context.Context, channel models.Channel) ([]models.ChannelMember, error) {
	if channel.GuildID != nil {
		var members []models.ChannelMember
		err := r.db.SelectContext(ctx, &members, `SELECT gm.user_id, COALESCE(p.username, '') AS username,
            CASE WHEN g.owner_id = gm.user_id THEN 'admin' ELSE 'member' END AS role
            FROM guild_members gm
            INNER JOIN guilds g ON g.id = gm.guild_id
            LEFT JOIN profiles p ON p.user_id = gm.user_id
            WHERE gm.guild_id=$1 ORDER BY gm.user_id`, *channel.GuildID)
		return members, err
	}

	var members []models.ChannelMember
	err := r.db.SelectContext(ctx, &members, `SELECT cp.user_id, COALESCE(p.username, '') AS username, cp.role
        FROM channel_participants cp
        LEFT JOIN profiles p ON p.user_id = cp.user_id
        WHERE cp.channel_id=$1 ORDER BY cp.user_id`, channel.ID)
	if err != nil {
		return nil, err
	}
	if !channel.IsGlobal {
		return members, nil
	}

	var admins []models.ChannelMember
	err = r.db.SelectContext(ctx, &admins, `SELECT pr.user_id, COALESCE(p.username, '') AS username, 'admin' AS role
        FROM platform_roles pr
        LEFT JOIN profiles p ON p.user_id = pr.user_id
        WHERE pr.role='admin' ORDER BY pr.user_id`)
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]int, len(members))
	for i, m := range members {
		seen[m.UserID] = i
	}
	for _, admin := range admins {
		if i, ok := seen[admin.UserID]; ok {
			members[i].Role = models.RoleAdmin
			continue
		}
		members = append(members, admin)
	}
	return members, nil
}

func isForeignKeyViolation(err error, constraintPart string) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23503" && strings.Contains(pqErr.Constraint, constraintPart)
}

func prefixedChannelColumns(alias string) string {
	return fmt.Sprintf(`%[1]s.id, %[1]s.guild_id, %[1]s.category_id, %[1]s.name, %[1]s.topic, %[1]s.type, %[1]s.is_private, %[1]s.is_global, %[1]s.created_by, %[1]s.rules, %[1]s.icon, %[1]s.dm_key, %[1]s.created_at`, alias)
}
