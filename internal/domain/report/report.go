package report

import (
	"fmt"
	"time"

	vo "github.com/civictrack/civictrack/internal/domain/report/valueobjects"
	"github.com/civictrack/civictrack/internal/shared/biztime"
)

// Location is a WGS84 point.
type Location struct {
	Latitude  float64
	Longitude float64
}

// Classification is the metadata written by automatic inference.
type Classification struct {
	Category           vo.Category
	CategoryConfidence float64
	Severity           vo.Severity
	SeverityConfidence float64
	OverallConfidence  float64
	ModelVersion       string
	Scores             map[string]float64
	InferredAt         time.Time
}

// Hold is the metadata kept while a report is on hold.
type Hold struct {
	Reason         string
	Until          *time.Time
	HeldAt         time.Time
	PreviousStatus vo.ReportStatus
}

type Report struct {
	id                  uint
	number              string
	submitterID         uint
	departmentID        *uint
	title               string
	description         string
	category            vo.Category
	status              vo.ReportStatus
	severity            vo.Severity
	location            *Location
	classification      *Classification
	isDuplicate         bool
	duplicateOfID       *uint
	needsReview         bool
	manuallyClassified  bool
	manuallyAssigned    bool
	pipelineProcessedAt *time.Time
	hold                *Hold
	version             int
	createdAt           time.Time
	updatedAt           time.Time
	resolvedAt          *time.Time
	closedAt            *time.Time
}

func NewReport(
	submitterID uint,
	title string,
	description string,
	category vo.Category,
	severity vo.Severity,
	location *Location,
) (*Report, error) {
	if submitterID == 0 {
		return nil, fmt.Errorf("submitter ID is required")
	}
	if len(title) == 0 {
		return nil, fmt.Errorf("title is required")
	}
	if len(title) > 200 {
		return nil, fmt.Errorf("title exceeds maximum length of 200 characters")
	}
	if len(description) > 5000 {
		return nil, fmt.Errorf("description exceeds maximum length of 5000 characters")
	}
	if category == "" {
		category = vo.CategoryOther
	}
	if !category.IsValid() {
		return nil, fmt.Errorf("invalid category")
	}
	if severity == "" {
		severity = vo.SeverityMedium
	}
	if !severity.IsValid() {
		return nil, fmt.Errorf("invalid severity")
	}
	if location != nil {
		if location.Latitude < -90 || location.Latitude > 90 || location.Longitude < -180 || location.Longitude > 180 {
			return nil, fmt.Errorf("location is out of range")
		}
	}

	now := biztime.NowUTC()
	return &Report{
		submitterID: submitterID,
		title:       title,
		description: description,
		category:    category,
		severity:    severity,
		status:      vo.StatusReceived,
		location:    location,
		version:     1,
		createdAt:   now,
		updatedAt:   now,
	}, nil
}

// ReportState carries every persisted field, used to rebuild a Report.
type ReportState struct {
	ID                  uint
	Number              string
	SubmitterID         uint
	DepartmentID        *uint
	Title               string
	Description         string
	Category            vo.Category
	Status              vo.ReportStatus
	Severity            vo.Severity
	Location            *Location
	Classification      *Classification
	IsDuplicate         bool
	DuplicateOfID       *uint
	NeedsReview         bool
	ManuallyClassified  bool
	ManuallyAssigned    bool
	PipelineProcessedAt *time.Time
	Hold                *Hold
	Version             int
	CreatedAt           time.Time
	UpdatedAt           time.Time
	ResolvedAt          *time.Time
	ClosedAt            *time.Time
}

func ReconstructReport(s ReportState) (*Report, error) {
	if s.ID == 0 {
		return nil, fmt.Errorf("report ID cannot be zero")
	}
	if len(s.Number) == 0 {
		return nil, fmt.Errorf("report number is required")
	}
	if !s.Status.IsValid() {
		return nil, fmt.Errorf("invalid status: %s", s.Status)
	}
	if !s.Category.IsValid() {
		return nil, fmt.Errorf("invalid category: %s", s.Category)
	}
	if !s.Severity.IsValid() {
		return nil, fmt.Errorf("invalid severity: %s", s.Severity)
	}
	if s.IsDuplicate != (s.DuplicateOfID != nil) {
		return nil, fmt.Errorf("duplicate flag and duplicate reference disagree")
	}

	return &Report{
		id:                  s.ID,
		number:              s.Number,
		submitterID:         s.SubmitterID,
		departmentID:        s.DepartmentID,
		title:               s.Title,
		description:         s.Description,
		category:            s.Category,
		status:              s.Status,
		severity:            s.Severity,
		location:            s.Location,
		classification:      s.Classification,
		isDuplicate:         s.IsDuplicate,
		duplicateOfID:       s.DuplicateOfID,
		needsReview:         s.NeedsReview,
		manuallyClassified:  s.ManuallyClassified,
		manuallyAssigned:    s.ManuallyAssigned,
		pipelineProcessedAt: s.PipelineProcessedAt,
		hold:                s.Hold,
		version:             s.Version,
		createdAt:           s.CreatedAt,
		updatedAt:           s.UpdatedAt,
		resolvedAt:          s.ResolvedAt,
		closedAt:            s.ClosedAt,
	}, nil
}

func (r *Report) ID() uint {
	return r.id
}

func (r *Report) Number() string {
	return r.number
}

func (r *Report) SubmitterID() uint {
	return r.submitterID
}

func (r *Report) DepartmentID() *uint {
	return r.departmentID
}

func (r *Report) Title() string {
	return r.title
}

func (r *Report) Description() string {
	return r.description
}

func (r *Report) Category() vo.Category {
	return r.category
}

func (r *Report) Status() vo.ReportStatus {
	return r.status
}

func (r *Report) Severity() vo.Severity {
	return r.severity
}

func (r *Report) Location() *Location {
	return r.location
}

func (r *Report) Classification() *Classification {
	return r.classification
}

func (r *Report) IsDuplicate() bool {
	return r.isDuplicate
}

func (r *Report) DuplicateOfID() *uint {
	return r.duplicateOfID
}

func (r *Report) NeedsReview() bool {
	return r.needsReview
}

func (r *Report) ManuallyClassified() bool {
	return r.manuallyClassified
}

func (r *Report) ManuallyAssigned() bool {
	return r.manuallyAssigned
}

func (r *Report) PipelineProcessedAt() *time.Time {
	return r.pipelineProcessedAt
}

func (r *Report) Hold() *Hold {
	return r.hold
}

func (r *Report) Version() int {
	return r.version
}

func (r *Report) CreatedAt() time.Time {
	return r.createdAt
}

func (r *Report) UpdatedAt() time.Time {
	return r.updatedAt
}

func (r *Report) ResolvedAt() *time.Time {
	return r.resolvedAt
}

func (r *Report) ClosedAt() *time.Time {
	return r.closedAt
}

func (r *Report) HasDepartment() bool {
	return r.departmentID != nil && *r.departmentID != 0
}

func (r *Report) IsPipelineProcessed() bool {
	return r.pipelineProcessedAt != nil
}

// Text is the title and description joined for inference.
func (r *Report) Text() string {
	if r.description == "" {
		return r.title
	}
	return r.title + "\n" + r.description
}

func (r *Report) SetID(id uint) error {
	if r.id != 0 {
		return fmt.Errorf("report ID is already set")
	}
	if id == 0 {
		return fmt.Errorf("report ID cannot be zero")
	}
	r.id = id
	return nil
}

func (r *Report) SetNumber(number string) error {
	if len(r.number) > 0 {
		return fmt.Errorf("report number is already set")
	}
	if len(number) == 0 {
		return fmt.Errorf("report number cannot be empty")
	}
	r.number = number
	return nil
}

// ResetNumber clears the number so a fresh one can be allocated after a collision.
func (r *Report) ResetNumber() {
	r.number = ""
}

func (r *Report) touch(at time.Time) {
	r.updatedAt = at
	r.version++
}

// ApplyStatus writes the new status and its side effects. Callers validate
// the transition first with StatusTransitionValidator.
func (r *Report) ApplyStatus(next vo.ReportStatus, at time.Time) {
	if r.status == next {
		return
	}

	if next == vo.StatusOnHold {
		if r.hold == nil {
			r.hold = &Hold{}
		}
		r.hold.HeldAt = at
		r.hold.PreviousStatus = r.status
	} else if r.status == vo.StatusOnHold {
		r.hold = nil
	}

	r.status = next

	switch next {
	case vo.StatusResolved:
		if r.resolvedAt == nil {
			t := at
			r.resolvedAt = &t
		}
	case vo.StatusClosed, vo.StatusRejected, vo.StatusDuplicate:
		if r.closedAt == nil {
			t := at
			r.closedAt = &t
		}
	}

	r.touch(at)
}

func (r *Report) AssignDepartment(departmentID uint, at time.Time) error {
	if departmentID == 0 {
		return fmt.Errorf("department ID cannot be zero")
	}
	r.departmentID = &departmentID
	r.touch(at)
	return nil
}

// MarkManuallyAssigned records that a human routed the report so automation leaves it alone.
func (r *Report) MarkManuallyAssigned() {
	r.manuallyAssigned = true
}

func (r *Report) MarkManuallyClassified(category vo.Category, severity vo.Severity, at time.Time) error {
	if !category.IsValid() {
		return fmt.Errorf("invalid category: %s", category)
	}
	if !severity.IsValid() {
		return fmt.Errorf("invalid severity: %s", severity)
	}
	r.category = category
	r.severity = severity
	r.manuallyClassified = true
	r.needsReview = false
	r.touch(at)
	return nil
}

// ApplyClassification stores inferred metadata and copies the inferred
// category/severity onto the report.
func (r *Report) ApplyClassification(c Classification) error {
	if !c.Category.IsValid() {
		return fmt.Errorf("invalid inferred category: %s", c.Category)
	}
	if !c.Severity.IsValid() {
		return fmt.Errorf("invalid inferred severity: %s", c.Severity)
	}
	if c.OverallConfidence < 0 || c.OverallConfidence > 1 {
		return fmt.Errorf("confidence must be within [0,1]")
	}
	r.classification = &c
	r.category = c.Category
	r.severity = c.Severity
	r.touch(c.InferredAt)
	return nil
}

// MarkDuplicate points the report at the canonical report it repeats. The
// canonical report must be older (smaller id).
func (r *Report) MarkDuplicate(canonicalID uint, similarity float64, modelVersion string, at time.Time) error {
	if canonicalID == 0 {
		return fmt.Errorf("canonical report ID cannot be zero")
	}
	if r.id != 0 && canonicalID >= r.id {
		return fmt.Errorf("report %d cannot duplicate newer report %d", r.id, canonicalID)
	}
	r.isDuplicate = true
	r.duplicateOfID = &canonicalID
	c := Classification{
		Category:           r.category,
		CategoryConfidence: similarity,
		Severity:           r.severity,
		OverallConfidence:  similarity,
		ModelVersion:       modelVersion,
		InferredAt:         at,
	}
	r.classification = &c
	r.touch(at)
	return nil
}

func (r *Report) FlagForReview() {
	r.needsReview = true
}

func (r *Report) ClearReview() {
	r.needsReview = false
}

func (r *Report) MarkPipelineProcessed(at time.Time) {
	t := at
	r.pipelineProcessedAt = &t
}

// SetHoldDetails records why and until when the report is held.
func (r *Report) SetHoldDetails(reason string, until *time.Time) {
	if r.hold == nil {
		r.hold = &Hold{}
	}
	r.hold.Reason = reason
	r.hold.Until = until
}

func (r *Report) Validate() error {
	if r.submitterID == 0 {
		return fmt.Errorf("submitter ID is required")
	}
	if len(r.title) == 0 {
		return fmt.Errorf("title is required")
	}
	if !r.status.IsValid() {
		return fmt.Errorf("invalid status")
	}
	if r.isDuplicate != (r.duplicateOfID != nil) {
		return fmt.Errorf("duplicate flag and duplicate reference disagree")
	}
	return nil
}
