package handler

import (
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dtroode/phoneauth/internal/model"
)

// stateToStruct encodes published state for the wire. Absent session and
// profile are omitted rather than sent as null.
func stateToStruct(s model.State) (*structpb.Struct, error) {
	fields := map[string]interface{}{
		"phase":         string(s.Phase),
		"loading":       s.Loading,
		"authenticated": s.Authenticated,
	}
	if s.SyncError != "" {
		fields["sync_error"] = s.SyncError
	}
	if s.Session != nil {
		fields["session"] = map[string]interface{}{
			"user_id":      s.Session.UserID,
			"phone_number": s.Session.PhoneNumber,
		}
	}
	if s.Profile != nil {
		fields["profile"] = map[string]interface{}{
			"user_id":      s.Profile.UserID,
			"phone_number": s.Profile.PhoneNumber,
			"created_at":   s.Profile.CreatedAt.UTC().Format(time.RFC3339Nano),
		}
	}
	return structpb.NewStruct(fields)
}

func stringField(s *structpb.Struct, name string) string {
	return s.GetFields()[name].GetStringValue()
}
