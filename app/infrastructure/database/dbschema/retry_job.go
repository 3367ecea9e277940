package dbschema

import (
	"time"

	"openlend.ai/position-cache/app/domain/retryjob"
	"openlend.ai/position-cache/app/infrastructure/database"
)

func init() {
	database.RegisterSchemaForAutoMigrate(RetryJob{})
}

func NewSchemaRetryJob(j *retryjob.Job) *RetryJob {
	return &RetryJob{
		BaseModel: BaseModel{
			ID:        j.ID,
			CreatedAt: j.CreatedAt,
			UpdatedAt: j.UpdatedAt,
		},
		PublicID:            j.PublicID,
		Subject:             j.Subject,
		Asset:               j.Asset,
		ViewTarget:          j.ViewTarget,
		ReasonCode:          string(j.ReasonCode),
		ReasonDetail:        j.ReasonDetail,
		SourceRef:           j.SourceRef,
		AttemptedCollateral: j.AttemptedCollateral,
		AttemptedDebt:       j.AttemptedDebt,
		Status:              string(j.Status),
		Attempts:            j.Attempts,
		DuplicateSignals:    j.DuplicateSignals,
		LastAttemptAt:       j.LastAttemptAt,
		NextAvailableAt:     j.NextAvailableAt,
		Note:                j.Note,
		Revision:            j.Revision,
	}
}

type RetryJob struct {
	BaseModel
	PublicID            string `gorm:"type:varchar(50);uniqueIndex;not null"`
	Subject             string `gorm:"type:varchar(128);not null;index:idx_retry_job_key,priority:1"`
	Asset               string `gorm:"type:varchar(128);not null;index:idx_retry_job_key,priority:2"`
	ViewTarget          string `gorm:"type:varchar(128);not null;index:idx_retry_job_key,priority:3"`
	ReasonCode          string `gorm:"type:varchar(40);not null"`
	ReasonDetail        string `gorm:"type:text"`
	SourceRef           string `gorm:"type:varchar(255);not null"`
	AttemptedCollateral string `gorm:"type:varchar(80)"`
	AttemptedDebt       string `gorm:"type:varchar(80)"`
	Status              string `gorm:"type:varchar(20);not null;index:idx_retry_job_due,priority:1"`
	Attempts            int    `gorm:"not null;default:0"`
	DuplicateSignals    int    `gorm:"not null;default:0"`
	LastAttemptAt       *time.Time
	NextAvailableAt     time.Time `gorm:"not null;index:idx_retry_job_due,priority:2"`
	Note                string    `gorm:"type:text"`
	Revision            uint64    `gorm:"not null;default:0"`
}

func (j *RetryJob) EtoD() *retryjob.Job {
	return &retryjob.Job{
		ID:                  j.ID,
		PublicID:            j.PublicID,
		Subject:             j.Subject,
		Asset:               j.Asset,
		ViewTarget:          j.ViewTarget,
		ReasonCode:          retryjob.ReasonCode(j.ReasonCode),
		ReasonDetail:        j.ReasonDetail,
		SourceRef:           j.SourceRef,
		AttemptedCollateral: j.AttemptedCollateral,
		AttemptedDebt:       j.AttemptedDebt,
		Status:              retryjob.Status(j.Status),
		Attempts:            j.Attempts,
		DuplicateSignals:    j.DuplicateSignals,
		LastAttemptAt:       j.LastAttemptAt,
		NextAvailableAt:     j.NextAvailableAt,
		Note:                j.Note,
		Revision:            j.Revision,
		CreatedAt:           j.CreatedAt,
		UpdatedAt:           j.UpdatedAt,
	}
}
