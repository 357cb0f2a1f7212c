package services

import (
	"errors"
	"log"
	"time"

	"github.com/exotech/urchat-api/models"
	"github.com/exotech/urchat-api/utils"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

// Default room avatars, matching what clients render before customization
const (
	directRoomPfpIndex = "💬"
	directRoomPfpBg    = "#2196F3"
	groupRoomPfpIndex  = "👥"
	groupRoomPfpBg     = "#FF9800"
)

// ChatRoomSummary is one entry of a user's chat-list snapshot, already
// annotated relative to the viewer
type ChatRoomSummary struct {
	ChatID       string    `json:"chat_id"`
	Name         string    `json:"name"`
	IsGroup      bool      `json:"is_group"`
	PfpIndex     string    `json:"pfp_index"`
	PfpBg        string    `json:"pfp_bg"`
	LastMessage  string    `json:"last_message"`
	LastActivity time.Time `json:"last_activity"`
}

// GroupMember is one member (or pending invitee) in a group details view
type GroupMember struct {
	Username string `json:"username"`
	FullName string `json:"full_name"`
	PfpIndex string `json:"pfp_index"`
	PfpBg    string `json:"pfp_bg"`
	IsAdmin  bool   `json:"is_admin"`
}

// GroupDetails is the full membership view of a group room
type GroupDetails struct {
	ChatID  string        `json:"chat_id"`
	Name    string        `json:"name"`
	Admin   string        `json:"admin"`
	Members []GroupMember `json:"members"`
	Pending []GroupMember `json:"pending"`
}

// ChatTheme is the per-room theme settings, opaque to everything but clients
type ChatTheme struct {
	ThemeIndex int  `json:"theme_index"`
	IsDark     bool `json:"is_dark"`
}

// RoomsService manages room creation and every membership transition:
// invitations, accept/decline, leave, kick, and admin succession
type RoomsService struct {
	DB            *gorm.DB
	Events        RoomEvents
	Notifications *NotificationsService
	Messages      *MessagesService
}

// GetOrCreateDirectRoom returns the direct room for the unordered pair,
// creating it if it does not exist yet. Concurrent calls for the same pair
// settle on exactly one room via the unique pair-key index.
func (s *RoomsService) GetOrCreateDirectRoom(userA, userB string) (*models.ChatRoom, error) {

	if userA == userB {
		return nil, errValidation("cannot open a direct room with yourself")
	}
	pairKey := utils.DirectRoomPairKey(userA, userB)

	// Return the existing room for the pair, if any
	room, err := s.findDirectRoom(pairKey)
	if err != nil {
		return nil, err
	}
	if room != nil {
		return room, nil
	}

	// Both sides must be known to the identity subsystem
	for _, username := range []string{userA, userB} {
		if _, err := findUser(s.DB, username); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	room = &models.ChatRoom{
		ID:           uuid.NewString(),
		IsGroup:      false,
		PairKey:      nullString(pairKey),
		LastMessage:  models.NoMessagesYet,
		LastActivity: now,
		PfpIndex:     directRoomPfpIndex,
		PfpBg:        directRoomPfpBg,
		CreatedDate:  now,
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(room).Error; err != nil {
			return err
		}
		for _, username := range []string{userA, userB} {
			participant := models.RoomParticipant{
				ChatRoomID: room.ID,
				Username:   username,
				JoinedDate: now,
			}
			if err := tx.Create(&participant).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		// A concurrent call for the same pair won the race; theirs is the room
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			existing, findErr := s.findDirectRoom(pairKey)
			if findErr != nil {
				return nil, findErr
			}
			if existing != nil {
				return existing, nil
			}
		}
		return nil, err
	}

	events(s.Events).ChatListChanged(userA, userB)
	return room, nil
}

func (s *RoomsService) findDirectRoom(pairKey string) (*models.ChatRoom, error) {
	var room models.ChatRoom
	err := s.DB.
		Where("is_group = ?", false).
		Where("pair_key = ?", pairKey).
		First(&room).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &room, nil
}

// CreateGroup creates a group room with the creator as sole participant and
// admin, and every invitee as a pending invitation. A group needs at least
// two invitees: a room that could only ever hold two people belongs in a
// direct room, and the command surface exposes that path separately.
func (s *RoomsService) CreateGroup(name, creatorUsername string, inviteeUsernames []string) (*GroupDetails, error) {

	// Dedupe the invitees and drop the creator if listed among them before
	// counting, so repeated names cannot sneak a too-small group past the
	// size rule
	invitees := lo.Uniq(lo.Filter(inviteeUsernames, func(username string, _ int) bool {
		return username != creatorUsername
	}))
	if len(invitees) == 0 {
		return nil, errValidation("group must have at least one invitee")
	}
	if len(invitees) == 1 {
		return nil, errValidation("cannot create a group with 2 members; use a direct room")
	}

	creator, err := findUser(s.DB, creatorUsername)
	if err != nil {
		return nil, err
	}
	inviteeUsers := make([]*models.User, 0, len(invitees))
	for _, username := range invitees {
		user, err := findUser(s.DB, username)
		if err != nil {
			return nil, err
		}
		inviteeUsers = append(inviteeUsers, user)
	}

	now := time.Now().UTC()
	room := &models.ChatRoom{
		ID:            uuid.NewString(),
		IsGroup:       true,
		Name:          name,
		AdminUsername: nullString(creatorUsername),
		LastMessage:   models.NoMessagesYet,
		LastActivity:  now,
		IsDarkTheme:   true,
		PfpIndex:      groupRoomPfpIndex,
		PfpBg:         groupRoomPfpBg,
		CreatedDate:   now,
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(room).Error; err != nil {
			return err
		}
		participant := models.RoomParticipant{
			ChatRoomID: room.ID,
			Username:   creatorUsername,
			JoinedDate: now,
		}
		if err := tx.Create(&participant).Error; err != nil {
			return err
		}
		for _, username := range invitees {
			invitation := models.RoomInvitation{
				ChatRoomID:  room.ID,
				Username:    username,
				CreatedDate: now,
			}
			if err := tx.Create(&invitation).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Notifications.NotifyGroupInvitation(name, invitees)
	events(s.Events).ChatListChanged(creatorUsername)

	details := &GroupDetails{
		ChatID:  room.ID,
		Name:    name,
		Admin:   creatorUsername,
		Members: []GroupMember{memberView(creator, true)},
	}
	for _, user := range inviteeUsers {
		details.Pending = append(details.Pending, memberView(user, false))
	}
	return details, nil
}

// InviteUser adds a pending invitation to a group. Only the current admin may
// invite, and the invitee must be neither a member nor already invited.
func (s *RoomsService) InviteUser(chatID, inviterUsername, inviteeUsername string) error {

	if _, err := findUser(s.DB, inviteeUsername); err != nil {
		return err
	}

	var groupName string
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		room, err := lockRoom(tx, chatID)
		if err != nil {
			return err
		}
		if !room.IsGroup {
			return errConflict("cannot invite users to a direct room")
		}
		if !room.AdminUsername.Valid || room.AdminUsername.String != inviterUsername {
			return errForbidden("only the group admin can invite users")
		}

		member, err := isParticipant(tx, chatID, inviteeUsername)
		if err != nil {
			return err
		}
		if member {
			return errConflict("%s is already a member", inviteeUsername)
		}
		pending, err := hasPendingInvitation(tx, chatID, inviteeUsername)
		if err != nil {
			return err
		}
		if pending {
			return errConflict("%s already has a pending invitation", inviteeUsername)
		}

		groupName = room.Name
		invitation := models.RoomInvitation{
			ChatRoomID:  chatID,
			Username:    inviteeUsername,
			CreatedDate: time.Now().UTC(),
		}
		return tx.Create(&invitation).Error
	})
	if err != nil {
		return err
	}

	s.Notifications.NotifyGroupInvitation(groupName, []string{inviteeUsername})
	return nil
}

// AcceptInvitation turns a pending invitation into membership
func (s *RoomsService) AcceptInvitation(chatID, username string) error {

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if _, err := lockRoom(tx, chatID); err != nil {
			return err
		}
		if err := s.consumeInvitation(tx, chatID, username); err != nil {
			return err
		}

		// The invitation and membership sets are disjoint, but a stale accept
		// retried by a client must not fail on the unique index
		member, err := isParticipant(tx, chatID, username)
		if err != nil {
			return err
		}
		if member {
			return nil
		}
		participant := models.RoomParticipant{
			ChatRoomID: chatID,
			Username:   username,
			JoinedDate: time.Now().UTC(),
		}
		return tx.Create(&participant).Error
	})
	if err != nil {
		return err
	}

	events(s.Events).ChatListChanged(username)
	return nil
}

// DeclineInvitation discards a pending invitation
func (s *RoomsService) DeclineInvitation(chatID, username string) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		if _, err := lockRoom(tx, chatID); err != nil {
			return err
		}
		return s.consumeInvitation(tx, chatID, username)
	})
}

func (s *RoomsService) consumeInvitation(tx *gorm.DB, chatID, username string) error {
	res := tx.
		Where("chat_room_id = ?", chatID).
		Where("username = ?", username).
		Delete(&models.RoomInvitation{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errNotFound("no pending invitation for %s", username)
	}
	return nil
}

// RemoveUser kicks a member (or revokes a pending invitation) from a group.
// Admin-only; the admin leaves through LeaveRoom, never through here.
func (s *RoomsService) RemoveUser(chatID, removerUsername, targetUsername string) error {

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		room, err := lockRoom(tx, chatID)
		if err != nil {
			return err
		}
		if !room.IsGroup {
			return errConflict("cannot remove users from a direct room")
		}
		if !room.AdminUsername.Valid || room.AdminUsername.String != removerUsername {
			return errForbidden("only the group admin can remove users")
		}
		if targetUsername == removerUsername {
			return errConflict("admin cannot remove themselves; leave the group instead")
		}

		err = tx.
			Where("chat_room_id = ?", chatID).
			Where("username = ?", targetUsername).
			Delete(&models.RoomParticipant{}).
			Error
		if err != nil {
			return err
		}
		return tx.
			Where("chat_room_id = ?", chatID).
			Where("username = ?", targetUsername).
			Delete(&models.RoomInvitation{}).
			Error
	})
	if err != nil {
		return err
	}

	events(s.Events).ChatListChanged(targetUsername)
	return nil
}

// LeaveRoom removes the caller from a group. If the leaving member was admin
// and participants remain, admin passes to the lexicographically smallest
// remaining username; that rule is fixed so concurrent observers agree on the
// successor. If nobody remains the whole room cascades away.
func (s *RoomsService) LeaveRoom(chatID, username string) error {

	var (
		former    []string
		remaining []string
		deleted   bool
	)
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		room, err := lockRoom(tx, chatID)
		if err != nil {
			return err
		}
		if !room.IsGroup {
			return errConflict("cannot leave a direct room")
		}

		member, err := isParticipant(tx, chatID, username)
		if err != nil {
			return err
		}
		if !member {
			return errForbidden("you are not a member of this group")
		}

		former, err = participantUsernames(tx, chatID)
		if err != nil {
			return err
		}

		err = tx.
			Where("chat_room_id = ?", chatID).
			Where("username = ?", username).
			Delete(&models.RoomParticipant{}).
			Error
		if err != nil {
			return err
		}
		// Drop any stale invitation entry for the leaver as well
		err = tx.
			Where("chat_room_id = ?", chatID).
			Where("username = ?", username).
			Delete(&models.RoomInvitation{}).
			Error
		if err != nil {
			return err
		}

		remaining, err = participantUsernames(tx, chatID)
		if err != nil {
			return err
		}
		if len(remaining) == 0 {
			deleted = true
			return s.Messages.cascadeDeleteRoom(tx, chatID)
		}

		if room.AdminUsername.Valid && room.AdminUsername.String == username {
			newAdmin := remaining[0]
			err = tx.
				Model(&models.ChatRoom{}).
				Where("id = ?", chatID).
				Update("admin_username", newAdmin).
				Error
			if err != nil {
				return err
			}
			log.Printf("transferred admin of group %s to %s", chatID, newAdmin)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if deleted {
		return s.Messages.finishCascade(chatID, former)
	}
	// The leaver's own list changed too, so notify everyone who was a member
	events(s.Events).ChatListChanged(former...)
	return nil
}

// ChangeAdmin hands group administration to another current member
func (s *RoomsService) ChangeAdmin(chatID, currentAdmin, candidate string) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		room, err := lockRoom(tx, chatID)
		if err != nil {
			return err
		}
		if !room.IsGroup {
			return errConflict("direct rooms have no admin")
		}
		if !room.AdminUsername.Valid || room.AdminUsername.String != currentAdmin {
			return errForbidden("only the current admin can transfer admin rights")
		}

		member, err := isParticipant(tx, chatID, candidate)
		if err != nil {
			return err
		}
		if !member {
			return errConflict("%s is not a member of this group", candidate)
		}

		return tx.
			Model(&models.ChatRoom{}).
			Where("id = ?", chatID).
			Update("admin_username", candidate).
			Error
	})
}

// GetUserRooms builds the user's full ordered chat-list snapshot: rooms
// sorted by last activity, each annotated relative to the viewer
func (s *RoomsService) GetUserRooms(username string) ([]*ChatRoomSummary, error) {

	var rooms []*models.ChatRoom
	err := s.DB.
		Joins("JOIN room_participants rp ON rp.chat_room_id = chat_rooms.id").
		Where("rp.username = ?", username).
		Order("last_activity DESC").
		Find(&rooms).
		Error
	if err != nil {
		return nil, err
	}

	summaries := make([]*ChatRoomSummary, 0, len(rooms))
	for _, room := range rooms {
		summary, err := s.summarize(room, username)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

func (s *RoomsService) summarize(room *models.ChatRoom, viewer string) (*ChatRoomSummary, error) {
	summary := &ChatRoomSummary{
		ChatID:       room.ID,
		IsGroup:      room.IsGroup,
		PfpIndex:     room.PfpIndex,
		PfpBg:        room.PfpBg,
		LastMessage:  room.LastMessage,
		LastActivity: room.LastActivity,
	}

	participants, err := participantUsernames(s.DB, room.ID)
	if err != nil {
		return nil, err
	}
	summary.Name = room.DisplayName(viewer, participants)

	// Direct rooms render with the other participant's avatar
	if !room.IsGroup {
		other, ok := lo.Find(participants, func(p string) bool { return p != viewer })
		if ok {
			if user, err := findUser(s.DB, other); err == nil {
				summary.PfpIndex = user.PfpIndex
				summary.PfpBg = user.PfpBg
			}
		}
	}
	return summary, nil
}

// GetGroupInvitations lists the group rooms a user has been invited to and
// has not yet answered
func (s *RoomsService) GetGroupInvitations(username string) ([]*ChatRoomSummary, error) {
	var rooms []*models.ChatRoom
	err := s.DB.
		Joins("JOIN room_invitations ri ON ri.chat_room_id = chat_rooms.id").
		Where("ri.username = ?", username).
		Where("chat_rooms.is_group = ?", true).
		Order("ri.created_date DESC").
		Find(&rooms).
		Error
	if err != nil {
		return nil, err
	}
	return lo.Map(rooms, func(room *models.ChatRoom, _ int) *ChatRoomSummary {
		return &ChatRoomSummary{
			ChatID:       room.ID,
			Name:         room.Name,
			IsGroup:      true,
			PfpIndex:     room.PfpIndex,
			PfpBg:        room.PfpBg,
			LastMessage:  room.LastMessage,
			LastActivity: room.LastActivity,
		}
	}), nil
}

// SearchGroups finds group rooms whose name contains the given substring
func (s *RoomsService) SearchGroups(name string) ([]*ChatRoomSummary, error) {
	var rooms []*models.ChatRoom
	err := s.DB.
		Where("is_group = ?", true).
		Where("name LIKE ?", "%"+name+"%").
		Find(&rooms).
		Error
	if err != nil {
		return nil, err
	}
	return lo.Map(rooms, func(room *models.ChatRoom, _ int) *ChatRoomSummary {
		return &ChatRoomSummary{
			ChatID:       room.ID,
			Name:         room.Name,
			IsGroup:      true,
			PfpIndex:     room.PfpIndex,
			PfpBg:        room.PfpBg,
			LastActivity: room.LastActivity,
		}
	}), nil
}

// GetGroupDetails returns the full membership view of a group to one of its
// current members
func (s *RoomsService) GetGroupDetails(chatID, viewer string) (*GroupDetails, error) {

	room, err := s.getRoom(chatID)
	if err != nil {
		return nil, err
	}
	if !room.IsGroup {
		return nil, errConflict("chat %s is not a group", chatID)
	}

	member, err := isParticipant(s.DB, chatID, viewer)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, errForbidden("access denied to this group")
	}

	details := &GroupDetails{
		ChatID: room.ID,
		Name:   room.Name,
		Admin:  room.AdminUsername.String,
	}

	participants, err := participantUsernames(s.DB, chatID)
	if err != nil {
		return nil, err
	}
	for _, username := range participants {
		user, err := findUser(s.DB, username)
		if err != nil {
			return nil, err
		}
		details.Members = append(details.Members, memberView(user, username == details.Admin))
	}

	var invited []string
	err = s.DB.
		Model(&models.RoomInvitation{}).
		Where("chat_room_id = ?", chatID).
		Order("username ASC").
		Pluck("username", &invited).
		Error
	if err != nil {
		return nil, err
	}
	for _, username := range invited {
		user, err := findUser(s.DB, username)
		if err != nil {
			return nil, err
		}
		details.Pending = append(details.Pending, memberView(user, false))
	}
	return details, nil
}

// GetTheme reads a room's theme settings
func (s *RoomsService) GetTheme(chatID, viewer string) (*ChatTheme, error) {
	room, err := s.viewerRoom(chatID, viewer)
	if err != nil {
		return nil, err
	}
	return &ChatTheme{ThemeIndex: room.ThemeIndex, IsDark: room.IsDarkTheme}, nil
}

// SetTheme updates a room's theme settings
func (s *RoomsService) SetTheme(chatID, viewer string, theme *ChatTheme) (*ChatTheme, error) {
	if _, err := s.viewerRoom(chatID, viewer); err != nil {
		return nil, err
	}
	err := s.DB.
		Model(&models.ChatRoom{}).
		Where("id = ?", chatID).
		Updates(map[string]interface{}{
			"theme_index":   theme.ThemeIndex,
			"is_dark_theme": theme.IsDark,
		}).
		Error
	if err != nil {
		return nil, err
	}
	return theme, nil
}

// UpdateGroupPfp changes a group room's avatar
func (s *RoomsService) UpdateGroupPfp(chatID, viewer, pfpIndex, pfpBg string) error {
	room, err := s.viewerRoom(chatID, viewer)
	if err != nil {
		return err
	}
	if !room.IsGroup {
		return errConflict("chat %s is not a group", chatID)
	}
	return s.DB.
		Model(&models.ChatRoom{}).
		Where("id = ?", chatID).
		Updates(map[string]interface{}{
			"pfp_index": pfpIndex,
			"pfp_bg":    pfpBg,
		}).
		Error
}

func (s *RoomsService) getRoom(chatID string) (*models.ChatRoom, error) {
	var room models.ChatRoom
	err := s.DB.Where("id = ?", chatID).First(&room).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errNotFound("chat room %s not found", chatID)
		}
		return nil, err
	}
	return &room, nil
}

// viewerRoom loads a room and requires the viewer to be a current participant
func (s *RoomsService) viewerRoom(chatID, viewer string) (*models.ChatRoom, error) {
	room, err := s.getRoom(chatID)
	if err != nil {
		return nil, err
	}
	member, err := isParticipant(s.DB, chatID, viewer)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, errForbidden("access denied to this chat")
	}
	return room, nil
}

func memberView(user *models.User, isAdmin bool) GroupMember {
	return GroupMember{
		Username: user.Username,
		FullName: user.FullName,
		PfpIndex: user.PfpIndex,
		PfpBg:    user.PfpBg,
		IsAdmin:  isAdmin,
	}
}
