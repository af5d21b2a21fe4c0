package models

type ParticipantRole string

const (
	RoleCandidate ParticipantRole = "CANDIDATE"
	RoleEmployer  ParticipantRole = "EMPLOYER"
)

type Participant struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	AvatarURL   string          `json:"avatarUrl,omitempty"`
	Role        ParticipantRole `json:"role"`
	CompanyName string          `json:"companyName,omitempty"`
}

type Chat struct {
	ID            string      `json:"id"`
	Candidate     Participant `json:"candidate"`
	Employer      Participant `json:"employer"`
	JobID         string      `json:"jobId,omitempty"`
	LastMessage   string      `json:"lastMessage"`
	LastMessageAt string      `json:"lastMessageAt"`
	UnreadCount   int         `json:"unreadCount"`
}

// Counterpart returns the participant on the other side of the conversation
// from userID. Unknown users get the employer side, which is what candidates
// (the majority of app users) expect to see.
func (c *Chat) Counterpart(userID string) Participant {
	if c.Employer.ID == userID {
		return c.Candidate
	}
	return c.Employer
}
