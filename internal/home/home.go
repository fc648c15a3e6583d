package home

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/dcrodman/bastion/internal/core"
	"github.com/dcrodman/bastion/internal/core/bytes"
	"github.com/dcrodman/bastion/internal/core/client"
	"github.com/dcrodman/bastion/internal/core/data"
	"github.com/dcrodman/bastion/internal/packets"
)

// maxNameLength is the longest avatar name, in characters, the client lets a player pick.
const maxNameLength = 16

// Server is the HOME server implementation. Clients connect to it directly,
// log in with the id and token handed out on their first login, and are sent
// their village.
type Server struct {
	Name   string
	Config *core.Config
	Logger *logrus.Logger
	Store  data.Store

	// now is overridden in tests.
	now func() time.Time
}

func (s *Server) Identifier() string {
	return s.Name
}

func (s *Server) Init(_ context.Context) error {
	if s.Store == nil {
		return errors.New("no level store configured")
	}
	if s.now == nil {
		s.now = time.Now
	}
	return nil
}

func (s *Server) SetUpClient(c *client.Client) {
	c.DebugTags["server_type"] = "home"
}

func (s *Server) Handshake(c *client.Client) error {
	return c.StartSession()
}

func (s *Server) Handle(ctx context.Context, c *client.Client, m packets.Message) error {
	var err error
	switch m := m.(type) {
	case *packets.LoginRequest:
		err = s.handleLogin(ctx, c, m)
	case *packets.KeepAliveRequest:
		err = c.Send(&packets.KeepAliveResponse{})
	case *packets.ChangeAvatarNameRequest:
		err = s.handleChangeAvatarName(ctx, c, m)
	default:
		c.Logger().Infof("received unhandled message %s", packets.DefaultRegistry.Name(m.ID()))
	}

	return err
}

func (s *Server) handleLogin(ctx context.Context, c *client.Client, req *packets.LoginRequest) error {
	if c.Level != nil {
		c.Logger().Warn("ignoring login from a client that is already logged in")
		return nil
	}

	level, err := s.loadOrCreateLevel(ctx, req)
	switch {
	case errors.Is(err, data.ErrInvalidLevelID):
		c.Logger().Infof("rejected login: %v", err)
		return s.sendLoginFailed(c, packets.LoginFailureInvalidUserData, "")
	case err != nil:
		c.Logger().Errorf("error loading level %d: %v", req.UserID, err)
		if sendErr := s.sendLoginFailed(c, packets.LoginFailureUnknown, err.Error()); sendErr != nil {
			return err
		}
		// Let the failure reach the client before hanging up.
		c.DisconnectAfterSend(err)
		return nil
	}
	if level == nil {
		c.Logger().Infof("rejected login for level %d: invalid token", req.UserID)
		return s.sendLoginFailed(c, packets.LoginFailureInvalidUserData, "")
	}

	now := s.now()
	lastVisit := now.Sub(level.UpdatedAt)
	if level.LoginCount == 0 || lastVisit < 0 {
		lastVisit = 0
	}

	level.LoginCount++
	if err := s.Store.SaveLevel(ctx, level); err != nil {
		return err
	}
	c.Level = level
	c.Logger().Infof("logged in (login #%d)", level.LoginCount)

	if err := c.Send(s.loginSuccess(level)); err != nil {
		return err
	}
	return c.Send(s.ownHomeData(level, now, lastVisit))
}

// loadOrCreateLevel finds the level a login refers to, creating it if the
// client has none yet. A nil level means the token did not match.
func (s *Server) loadOrCreateLevel(ctx context.Context, req *packets.LoginRequest) (*data.LevelSave, error) {
	if req.UserID == 0 {
		return s.Store.NewLevel(ctx, 0, "")
	}

	level, err := s.Store.LoadLevel(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if level == nil {
		// Unknown ids are adopted so a client keeps its credentials across server wipes.
		return s.Store.NewLevel(ctx, req.UserID, req.UserToken.String)
	}
	if level.Token != req.UserToken.String {
		return nil, nil
	}
	return level, nil
}

func (s *Server) sendLoginFailed(c *client.Client, reason packets.LoginFailureReason, message string) error {
	failed := &packets.LoginFailed{Reason: reason}
	if message != "" {
		failed.Message = bytes.NewString(cases.Title(language.English).String(message))
	}
	return c.Send(failed)
}

func (s *Server) loginSuccess(level *data.LevelSave) *packets.LoginSuccess {
	return &packets.LoginSuccess{
		UserID:            level.ID,
		HomeID:            level.ID,
		UserToken:         bytes.NewString(level.Token),
		MajorVersion:      s.Config.Game.MajorVersion,
		MinorVersion:      s.Config.Game.MinorVersion,
		RevisionVersion:   s.Config.Game.RevisionVersion,
		ServerEnvironment: bytes.NewString(s.Config.Game.ServerEnvironment),
		LoginCount:        level.LoginCount,
		PlayTime:          level.PlayTime,
		DateLastPlayed:    bytes.NewString(strconv.FormatInt(level.UpdatedAt.UnixMilli(), 10)),
		DateJoined:        bytes.NewString(strconv.FormatInt(level.CreatedAt.UnixMilli(), 10)),
	}
}

func (s *Server) ownHomeData(level *data.LevelSave, now time.Time, lastVisit time.Duration) *packets.OwnHomeData {
	return &packets.OwnHomeData{
		LastVisit: int32(lastVisit / time.Second),
		Unknown1:  -1,
		Timestamp: int32(now.Unix()),
		Home:      []byte(level.VillageJSON),
		Avatar:    newAvatar(level),
	}
}

// newAvatar fills an Avatar from a saved level.
func newAvatar(level *data.LevelSave) *packets.Avatar {
	avatar := packets.NewAvatar(level.ID)
	avatar.Name = bytes.NewString(level.Name)
	avatar.IsNamed = level.IsNamed
	avatar.Level = level.ExpLevel
	avatar.Experience = level.ExpPoints
	avatar.Gems = level.Gems
	avatar.FreeGems = level.FreeGems
	avatar.Trophies = level.Trophies
	return avatar
}

func (s *Server) handleChangeAvatarName(ctx context.Context, c *client.Client, req *packets.ChangeAvatarNameRequest) error {
	if c.Level == nil {
		return errors.New("avatar name change before login")
	}

	name, err := normalizeName(req.Name)
	if err != nil {
		c.Logger().Infof("rejected avatar name: %v", err)
		return nil
	}

	c.Level.Name = name
	c.Level.IsNamed = true
	if err := s.Store.SaveLevel(ctx, c.Level); err != nil {
		return err
	}
	return c.Send(s.ownHomeData(c.Level, s.now(), 0))
}

// normalizeName converts a requested avatar name to NFC and checks its length.
func normalizeName(requested bytes.NullString) (string, error) {
	if !requested.Valid {
		return "", errors.New("no name given")
	}
	if !utf8.ValidString(requested.String) {
		return "", errors.New("name is not valid UTF-8")
	}
	name := norm.NFC.String(strings.TrimSpace(requested.String))
	if n := utf8.RuneCountInString(name); n == 0 || n > maxNameLength {
		return "", fmt.Errorf("name has %d characters, must be 1 to %d", n, maxNameLength)
	}
	return name, nil
}
