package store

// Thread is the conversation record for one phone-number identity.
// Exactly one thread exists per phone key.
type Thread struct {
	PhoneKey            string `json:"phoneKey"`
	Name                string `json:"name"`
	About               string `json:"about"`
	LastMessage         string `json:"lastMessage"`
	LastMessageStatus   string `json:"lastMessageStatus"`
	LastMessageStatusTS int64  `json:"lastMessageStatusTimestamp"`
	LastMessageAdmin    string `json:"lastMessageAdmin"`
	LastMessageAdminTS  int64  `json:"lastMessageAdminTimestamp"`
	UserLastReadAt      int64  `json:"userLastReadAt"`
	AdminLastReadAt     int64  `json:"adminLastReadAt"`
	LastError           string `json:"lastError"`
	UnreadCount         int    `json:"unreadCount"`
	IsAgendado          bool   `json:"isAgendado"`
	IsBlocked           bool   `json:"isBlocked"`
	UserAvatar          string `json:"userAvatar"`
	PhotoURL            string `json:"photoURL"`
	Avatar              string `json:"avatar"`
	CreatedAt           int64  `json:"createdAt"`
	UpdatedAt           int64  `json:"updatedAt"`
}

// Message is a child of a thread, ordered by server-assigned timestamp.
// Rows are immutable once created except for status and receipt fields.
type Message struct {
	ID          string `json:"id"`
	PhoneKey    string `json:"phoneKey"`
	Content     string `json:"content"`
	Type        string `json:"type"` // text, image, document, sticker
	IsOutgoing  bool   `json:"isOutgoing"`
	Status      string `json:"status"` // sent, delivered, read, failed
	ProviderSID string `json:"providerSid,omitempty"`
	Filename    string `json:"filename,omitempty"`
	SentAt      int64  `json:"sentAt"`
	DeliveredAt int64  `json:"deliveredAt"`
	ReadAt      int64  `json:"readAt"`
	Timestamp   int64  `json:"timestamp"`
}

// Profile is a user profile document, keyed by phone number.
type Profile struct {
	PhoneKey  string `json:"phoneKey"`
	Name      string `json:"name"`
	Avatar    string `json:"avatar"`
	About     string `json:"about"`
	CreatedAt int64  `json:"createdAt"`
	UpdatedAt int64  `json:"updatedAt"`
}

// AdminProfile is the singleton business-side profile document.
type AdminProfile struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
	About  string `json:"about"`
	Online bool   `json:"online"`
}

// Status is an ephemeral admin broadcast (image + caption).
type Status struct {
	ID        string `json:"id"`
	ImageURL  string `json:"imageUrl"`
	Caption   string `json:"caption"`
	Timestamp int64  `json:"timestamp"`
	CreatedAt int64  `json:"createdAt"`
	UpdatedAt int64  `json:"updatedAt"`
}

// StickerPack groups stickers; packs are auto-vivified on first upload.
type StickerPack struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Stickers []Sticker `json:"stickers"`
}

// Sticker is one uploaded sticker image.
type Sticker struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// OutboxEntry is a pending outbound provider dispatch for one message.
type OutboxEntry struct {
	ID           int64  `json:"id"`
	MessageID    string `json:"messageId"`
	PhoneKey     string `json:"phoneKey"`
	Body         string `json:"body"`
	Status       string `json:"status"` // queued, sending, sent, failed
	ErrorMessage string `json:"errorMessage,omitempty"`
	ProviderSID  string `json:"providerSid,omitempty"`
}
