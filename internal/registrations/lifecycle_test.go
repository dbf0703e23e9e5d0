package registrations

import (
	"testing"

	"github.com/sangam-association/backend/internal/models"
)

func TestCanCheckIn(t *testing.T) {
	cases := []struct {
		name       string
		reg        *models.Registration
		wantOK     bool
		wantReason RejectReason
	}{
		{"nil registration", nil, false, ReasonNotFound},
		{"registered", &models.Registration{Status: models.StatusRegistered}, true, ""},
		{"cancelled", &models.Registration{Status: models.StatusCancelled}, false, ReasonCancelled},
		{"attended", &models.Registration{Status: models.StatusAttended}, false, ReasonAlreadyAttended},
		{"no show", &models.Registration{Status: models.StatusNoShow}, false, ReasonAlreadyAttended},
		{"unknown status", &models.Registration{Status: "garbage"}, false, ReasonNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := CanCheckIn(tc.reg)
			if d.OK != tc.wantOK {
				t.Errorf("OK = %v, want %v", d.OK, tc.wantOK)
			}
			if !tc.wantOK && d.Reason != tc.wantReason {
				t.Errorf("Reason = %q, want %q", d.Reason, tc.wantReason)
			}
		})
	}
}
