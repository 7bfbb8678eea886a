package models

import "time"

// DocumentType enumerates registrar documents students can request.
type DocumentType string

const (
	DocumentTOR            DocumentType = "TOR"
	DocumentCertGrades     DocumentType = "CERT_GRADES"
	DocumentCertEnrollment DocumentType = "CERT_ENROLLMENT"
	DocumentGoodMoral      DocumentType = "GOOD_MORAL"
	DocumentDiploma        DocumentType = "DIPLOMA"
	DocumentCAV            DocumentType = "CAV"
)

// DocumentRequestStatus advances adjacent-only: pending, processing, ready,
// claimed. Cancelling is permitted from any pre-claimed state. CLAIMED and
// CANCELLED are terminal.
type DocumentRequestStatus string

const (
	RequestPending    DocumentRequestStatus = "PENDING"
	RequestProcessing DocumentRequestStatus = "PROCESSING"
	RequestReady      DocumentRequestStatus = "READY"
	RequestClaimed    DocumentRequestStatus = "CLAIMED"
	RequestCancelled  DocumentRequestStatus = "CANCELLED"
)

var documentRequestNext = map[DocumentRequestStatus]DocumentRequestStatus{
	RequestPending:    RequestProcessing,
	RequestProcessing: RequestReady,
	RequestReady:      RequestClaimed,
}

// IsTerminal reports whether no further transition is permitted.
func (s DocumentRequestStatus) IsTerminal() bool {
	return s == RequestClaimed || s == RequestCancelled
}

// CanTransitionTo permits the next adjacent step, or cancellation from any
// non-terminal state. Skipping steps (e.g. pending directly to claimed) is
// rejected.
func (s DocumentRequestStatus) CanTransitionTo(target DocumentRequestStatus) bool {
	if s.IsTerminal() {
		return false
	}
	if target == RequestCancelled {
		return true
	}
	return documentRequestNext[s] == target
}

// DocumentRequest is a student's request for an official document.
// ClaimedDate is stamped only on the transition into CLAIMED.
type DocumentRequest struct {
	ID            string                `db:"id" json:"id"`
	StudentID     string                `db:"student_id" json:"student_id"`
	DocumentType  DocumentType          `db:"document_type" json:"document_type"`
	Purpose       string                `db:"purpose" json:"purpose"`
	Copies        int                   `db:"copies" json:"copies"`
	RequestDate   time.Time             `db:"request_date" json:"request_date"`
	Status        DocumentRequestStatus `db:"status" json:"status"`
	ClaimedDate   *time.Time            `db:"claimed_date" json:"claimed_date,omitempty"`
	ProcessingFee float64               `db:"processing_fee" json:"processing_fee"`
	Remarks       string                `db:"remarks" json:"remarks"`
	FilePath      string                `db:"file_path" json:"file_path"`
}

// DocumentRequestFilter filters document request listings.
type DocumentRequestFilter struct {
	StudentID    string
	DocumentType DocumentType
	Status       DocumentRequestStatus
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}
