package apiclient

import "time"

// VersionSummary describes one stored version of a file.
type VersionSummary struct {
	ID         string    `json:"id"`
	Size       int64     `json:"size"`
	Uploader   string    `json:"uploader,omitempty"`
	Comment    string    `json:"comment,omitempty"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// FileSummary describes a file in a group listing. Size and Latest track
// the newest version.
type FileSummary struct {
	ID           string          `json:"id"`
	Filename     string          `json:"filename"`
	Description  string          `json:"description,omitempty"`
	ContentType  string          `json:"content_type,omitempty"`
	Size         int64           `json:"size"`
	VersionCount int             `json:"version_count"`
	Latest       *VersionSummary `json:"latest,omitempty"`
}

// Group represents a group as the API reports it. Files is only
// populated by GetGroup.
type Group struct {
	ID                     string        `json:"id"`
	Name                   string        `json:"name"`
	CreatedAt              time.Time     `json:"created_at"`
	ExpiresAt              time.Time     `json:"expires_at"`
	Expired                bool          `json:"expired"`
	IsReadonly             bool          `json:"is_readonly"`
	AllowConvertToReadonly bool          `json:"allow_convert_to_readonly"`
	HasPassword            bool          `json:"has_password"`
	Creator                string        `json:"creator,omitempty"`
	Files                  []FileSummary `json:"files,omitempty"`
}

// CreateGroupRequest is the request to create a group. CreatePassword is
// only needed when the server gates group creation behind a password.
type CreateGroupRequest struct {
	Name                   string `json:"name"`
	DurationHours          int    `json:"duration_hours,omitempty"`
	Password               string `json:"password,omitempty"`
	AllowConvertToReadonly bool   `json:"allow_convert_to_readonly"`
	Creator                string `json:"creator,omitempty"`
	CreatePassword         string `json:"create_password,omitempty"`
}

// ActionResponse reports the outcome of a group or file action.
type ActionResponse struct {
	Success   bool       `json:"success"`
	GroupID   string     `json:"group_id,omitempty"`
	FileID    string     `json:"file_id,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Message   string     `json:"message,omitempty"`
}

// CreateGroup creates a new group.
func (c *Client) CreateGroup(req *CreateGroupRequest) (*Group, error) {
	return createResource[Group](c, "/group/create", req)
}

// GetGroup returns a group with its file listing. Password-protected
// groups require a prior Unlock on this client.
func (c *Client) GetGroup(groupID string) (*Group, error) {
	return getResource[Group](c, resourcePath("/group/%s", groupID))
}

// Unlock checks a password against the group and marks this client's
// session. The group's own password and the server's unified password
// are both accepted.
func (c *Client) Unlock(groupID, password string) (*ActionResponse, error) {
	req := map[string]string{"password": password}
	return createResource[ActionResponse](c, resourcePath("/group/%s/unlock", groupID), req)
}

// Refresh restarts the group's expiration window from now, using the
// lifetime the group was created with.
func (c *Client) Refresh(groupID string) (*ActionResponse, error) {
	return createResource[ActionResponse](c, resourcePath("/group/%s/refresh", groupID), nil)
}

// ConvertToReadonly makes the group readonly. Converting is one-way and
// only allowed when the group was created with the permission.
func (c *Client) ConvertToReadonly(groupID string) (*ActionResponse, error) {
	return createResource[ActionResponse](c, resourcePath("/group/%s/convert-to-readonly", groupID), nil)
}
