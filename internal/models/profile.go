package models

import "strings"

// Contact 紧急联系人
type Contact struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Phone        string `json:"phone"`
	Relationship string `json:"relationship"`
	Group        string `json:"group,omitempty"`
	Priority     int    `json:"priority,omitempty"`
	LastAlerted  int64  `json:"lastAlerted,omitempty"` // epoch ms，0 表示从未
}

// Profile 用户资料快照
type Profile struct {
	Name              string    `json:"name"`
	EmergencyContacts []Contact `json:"emergencyContacts"`
}

// Snapshot 深拷贝，扇出期间对联系人的修改不会影响本次告警
func (p Profile) Snapshot() Profile {
	out := Profile{Name: p.Name}
	if p.EmergencyContacts != nil {
		out.EmergencyContacts = make([]Contact, len(p.EmergencyContacts))
		copy(out.EmergencyContacts, p.EmergencyContacts)
	}
	return out
}

// DisplayName 没有名字时的称呼
func (p Profile) DisplayName() string {
	if n := strings.TrimSpace(p.Name); n != "" {
		return n
	}
	return "SafeCircle user"
}

// ContactsInGroup group 为空时返回全部联系人
func (p Profile) ContactsInGroup(group string) []Contact {
	if group == "" {
		return p.Snapshot().EmergencyContacts
	}
	var out []Contact
	for _, c := range p.EmergencyContacts {
		if strings.EqualFold(c.Group, group) {
			out = append(out, c)
		}
	}
	return out
}
