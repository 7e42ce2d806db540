package server

import (
	"time"

	"github.com/vesaa/openfleet/internal/models"
)

// ServerResponse is the API view of a server. Credentials appear only
// when the caller's permissions allow; they are otherwise omitted, not
// blanked, so clients can tell "hidden" from "empty".
type ServerResponse struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	IP          string              `json:"ip"`
	Domain      *string             `json:"domain,omitempty"`
	Country     string              `json:"country"`
	Status      models.ServerStatus `json:"status"`
	LastChecked *time.Time          `json:"last_checked,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`

	Username   *string `json:"username,omitempty"`
	Password   *string `json:"password,omitempty"`
	PrivateKey *string `json:"private_key,omitempty"`

	Permissions models.Permissions `json:"permissions"`

	LatestHealthMetric *models.HealthMetric  `json:"latest_health_metric,omitempty"`
	LatestSpeedTest    *models.SpeedTest     `json:"latest_speed_test,omitempty"`
	HealthMetrics      []models.HealthMetric `json:"health_metrics,omitempty"`
	SpeedTests         []models.SpeedTest    `json:"speed_tests,omitempty"`
}

// serverResponse redacts srv according to perms.
func serverResponse(srv *models.Server, perms models.Permissions) ServerResponse {
	resp := ServerResponse{
		ID:          srv.ID,
		Name:        srv.Name,
		IP:          srv.IP,
		Domain:      srv.Domain,
		Country:     srv.Country,
		Status:      srv.Status,
		LastChecked: srv.LastChecked,
		CreatedAt:   srv.CreatedAt,
		UpdatedAt:   srv.UpdatedAt,
		Username:    srv.Username,
		Permissions: perms,
	}
	if perms.ViewPassword {
		resp.Password = srv.Password
	}
	if perms.ViewPrivateKey {
		resp.PrivateKey = srv.PrivateKey
	}
	return resp
}

// UserResponse is the API view of an account; never carries the hash.
type UserResponse struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Email     string      `json:"email"`
	Role      models.Role `json:"role"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

func userResponse(u *models.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// AccessResponse is the admin view of one grant, with the resolved
// capability flags and slim user/server summaries.
type AccessResponse struct {
	ID          string             `json:"id"`
	UserID      string             `json:"user_id"`
	ServerID    string             `json:"server_id"`
	Permissions models.Permissions `json:"permissions"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`

	User   *AccessUser   `json:"user,omitempty"`
	Server *AccessServer `json:"server,omitempty"`
}

// AccessUser is the slim user summary embedded in grant responses.
type AccessUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// AccessServer is the slim server summary embedded in grant responses.
type AccessServer struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	IP     string  `json:"ip"`
	Domain *string `json:"domain,omitempty"`
}

func accessResponse(a *models.ServerAccess) AccessResponse {
	resp := AccessResponse{
		ID:          a.ID,
		UserID:      a.UserID,
		ServerID:    a.ServerID,
		Permissions: a.Permissions(),
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
	if a.User != nil {
		resp.User = &AccessUser{ID: a.User.ID, Name: a.User.Name, Email: a.User.Email}
	}
	if a.Server != nil {
		resp.Server = &AccessServer{ID: a.Server.ID, Name: a.Server.Name, IP: a.Server.IP, Domain: a.Server.Domain}
	}
	return resp
}
