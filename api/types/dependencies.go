// Package types holds the shared handler dependency container.
package types

import (
	"github.com/castworks/processor-api/internal/database"
	"github.com/castworks/processor-api/internal/services/audio"
	"github.com/castworks/processor-api/internal/services/cdncookies"
	"github.com/castworks/processor-api/internal/services/jobs"
	"github.com/castworks/processor-api/internal/services/transcripts"
)

// Dependencies holds all dependencies needed by API handlers
type Dependencies struct {
	DB          *database.DB
	Jobs        jobs.Service
	AudioRepo   audio.Repository
	Transcripts transcripts.Repository
	Rotator     *cdncookies.Rotator
}
