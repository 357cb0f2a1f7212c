package services

import "log"

// PushGateway is the external push-notification delivery mechanism. Delivery
// internals (FCM, APNs, whatever) live behind this boundary and are not this
// service's concern.
type PushGateway interface {
	NotifyNewMessage(chatID, sender, content, displayName string, isGroup bool) error
	NotifyGroupInvitation(groupName string, usernames []string) error
}

// NotificationsService wraps a PushGateway with best-effort semantics: every
// call is fire-and-forget, and a gateway failure is logged and swallowed so it
// can never fail the operation it is attached to.
type NotificationsService struct {
	Gateway PushGateway
}

func (s *NotificationsService) NotifyNewMessage(chatID, sender, content, displayName string, isGroup bool) {
	if s == nil || s.Gateway == nil {
		return
	}
	if err := s.Gateway.NotifyNewMessage(chatID, sender, content, displayName, isGroup); err != nil {
		log.Printf("error: new-message notification for chat %s failed: %v", chatID, err)
	}
}

func (s *NotificationsService) NotifyGroupInvitation(groupName string, usernames []string) {
	if s == nil || s.Gateway == nil {
		return
	}
	if err := s.Gateway.NotifyGroupInvitation(groupName, usernames); err != nil {
		log.Printf("error: group-invitation notification for %q failed: %v", groupName, err)
	}
}

// LogGateway is the stand-in gateway used when no push credentials are
// configured. It only logs what would have been delivered.
type LogGateway struct{}

func (LogGateway) NotifyNewMessage(chatID, sender, _, displayName string, isGroup bool) error {
	log.Printf("push: new message in %s (%s, group=%v) from %s", chatID, displayName, isGroup, sender)
	return nil
}

func (LogGateway) NotifyGroupInvitation(groupName string, usernames []string) error {
	log.Printf("push: group invitation to %q for %d users", groupName, len(usernames))
	return nil
}
