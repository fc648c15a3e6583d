package packets

import "github.com/dcrodman/bastion/internal/core/bytes"

// LoginRequest is the first message sent by the client once the session key
// has been installed. A UserID of 0 asks the server to create a new account.
type LoginRequest struct {
	Versioned

	UserID         int64
	UserToken      bytes.NullString
	MajorVersion   int32
	ContentVersion int32
	MinorVersion   int32

	FingerprintHash bytes.NullString
	Unknown1        bytes.NullString
	OpenUDID        bytes.NullString
	MacAddress      bytes.NullString
	DeviceModel     bytes.NullString
	LocaleKey       int32
	Language        bytes.NullString
	AdvertisingGUID bytes.NullString
	OSVersion       bytes.NullString
	Unknown2        uint8
	Unknown3        bytes.NullString

	AndroidDeviceID              bytes.NullString
	FacebookDistributionID       bytes.NullString
	IsAdvertisingTrackingEnabled bool
	VendorGUID                   bytes.NullString
	Seed                         int32
}

func (m *LoginRequest) ID() uint16 { return LoginRequestID }

func (m *LoginRequest) Decode(r *bytes.Reader) error {
	m.UserID = r.Int64()
	m.UserToken = r.String()
	m.MajorVersion = r.Int32()
	m.ContentVersion = r.Int32()
	m.MinorVersion = r.Int32()
	m.FingerprintHash = r.String()
	m.Unknown1 = r.String()
	m.OpenUDID = r.String()
	m.MacAddress = r.String()
	m.DeviceModel = r.String()
	m.LocaleKey = r.Int32()
	m.Language = r.String()
	m.AdvertisingGUID = r.String()
	m.OSVersion = r.String()
	m.Unknown2 = r.Uint8()
	m.Unknown3 = r.String()
	m.AndroidDeviceID = r.String()
	m.FacebookDistributionID = r.String()
	m.IsAdvertisingTrackingEnabled = r.Bool()
	m.VendorGUID = r.String()
	m.Seed = r.Int32()
	return r.Err()
}

func (m *LoginRequest) Encode(w *bytes.Writer) error {
	w.Int64(m.UserID)
	w.String(m.UserToken)
	w.Int32(m.MajorVersion)
	w.Int32(m.ContentVersion)
	w.Int32(m.MinorVersion)
	w.String(m.FingerprintHash)
	w.String(m.Unknown1)
	w.String(m.OpenUDID)
	w.String(m.MacAddress)
	w.String(m.DeviceModel)
	w.Int32(m.LocaleKey)
	w.String(m.Language)
	w.String(m.AdvertisingGUID)
	w.String(m.OSVersion)
	w.Uint8(m.Unknown2)
	w.String(m.Unknown3)
	w.String(m.AndroidDeviceID)
	w.String(m.FacebookDistributionID)
	w.Bool(m.IsAdvertisingTrackingEnabled)
	w.String(m.VendorGUID)
	w.Int32(m.Seed)
	return nil
}

// LoginFailureReason is sent in LoginFailed to tell the client what to do next.
type LoginFailureReason int32

const (
	LoginFailureUnknown            LoginFailureReason = 0
	LoginFailureInvalidUserData    LoginFailureReason = 3
	LoginFailureUpdateContent      LoginFailureReason = 7
	LoginFailureUpdateClient       LoginFailureReason = 8
	LoginFailureServerMaintenance  LoginFailureReason = 10
	LoginFailureTemporarilyBanned  LoginFailureReason = 11
	LoginFailureLocked             LoginFailureReason = 13
	LoginFailureTooManyConnections LoginFailureReason = 14
)

// LoginFailed rejects a LoginRequest.
type LoginFailed struct {
	Versioned

	Reason          LoginFailureReason
	FingerprintJSON bytes.NullString
	Hostname        bytes.NullString
	ContentURL      bytes.NullString
	MarketURL       bytes.NullString
	Message         bytes.NullString
	RemainingTime   int32
	Unknown1        uint8
	Unknown2        bytes.NullString
}

func (m *LoginFailed) ID() uint16 { return LoginFailedID }

func (m *LoginFailed) Decode(r *bytes.Reader) error {
	m.Reason = LoginFailureReason(r.Int32())
	m.FingerprintJSON = r.String()
	m.Hostname = r.String()
	m.ContentURL = r.String()
	m.MarketURL = r.String()
	m.Message = r.String()
	m.RemainingTime = r.Int32()
	m.Unknown1 = r.Uint8()
	m.Unknown2 = r.String()
	return r.Err()
}

func (m *LoginFailed) Encode(w *bytes.Writer) error {
	w.Int32(int32(m.Reason))
	w.String(m.FingerprintJSON)
	w.String(m.Hostname)
	w.String(m.ContentURL)
	w.String(m.MarketURL)
	w.String(m.Message)
	w.Int32(m.RemainingTime)
	w.Uint8(m.Unknown1)
	w.String(m.Unknown2)
	return nil
}

// LoginSuccess accepts a LoginRequest and hands the client its credentials,
// which it stores and presents on the next login.
type LoginSuccess struct {
	Versioned

	UserID            int64
	HomeID            int64
	UserToken         bytes.NullString
	FacebookID        bytes.NullString
	GameCenterID      bytes.NullString
	MajorVersion      int32
	MinorVersion      int32
	RevisionVersion   int32
	ServerEnvironment bytes.NullString
	LoginCount        int32
	PlayTime          int32
	Unknown1          int32
	FacebookAppID     bytes.NullString
	DateLastPlayed    bytes.NullString
	DateJoined        bytes.NullString
	Unknown2          int32
	GooglePlusID      bytes.NullString
	CountryCode       bytes.NullString
}

func (m *LoginSuccess) ID() uint16 { return LoginSuccessID }

func (m *LoginSuccess) Decode(r *bytes.Reader) error {
	m.UserID = r.Int64()
	m.HomeID = r.Int64()
	m.UserToken = r.String()
	m.FacebookID = r.String()
	m.GameCenterID = r.String()
	m.MajorVersion = r.Int32()
	m.MinorVersion = r.Int32()
	m.RevisionVersion = r.Int32()
	m.ServerEnvironment = r.String()
	m.LoginCount = r.Int32()
	m.PlayTime = r.Int32()
	m.Unknown1 = r.Int32()
	m.FacebookAppID = r.String()
	m.DateLastPlayed = r.String()
	m.DateJoined = r.String()
	m.Unknown2 = r.Int32()
	m.GooglePlusID = r.String()
	m.CountryCode = r.String()
	return r.Err()
}

func (m *LoginSuccess) Encode(w *bytes.Writer) error {
	w.Int64(m.UserID)
	w.Int64(m.HomeID)
	w.String(m.UserToken)
	w.String(m.FacebookID)
	w.String(m.GameCenterID)
	w.Int32(m.MajorVersion)
	w.Int32(m.MinorVersion)
	w.Int32(m.RevisionVersion)
	w.String(m.ServerEnvironment)
	w.Int32(m.LoginCount)
	w.Int32(m.PlayTime)
	w.Int32(m.Unknown1)
	w.String(m.FacebookAppID)
	w.String(m.DateLastPlayed)
	w.String(m.DateJoined)
	w.Int32(m.Unknown2)
	w.String(m.GooglePlusID)
	w.String(m.CountryCode)
	return nil
}
