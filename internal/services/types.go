package services

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"github.com/tra-portal/tra-portal/internal/canon"
)

// Amount is a monetary value. The backend sends amounts either as JSON numbers
// or as numeric strings; both decode. An empty string or null decodes as 0.
type Amount float64

func (a *Amount) UnmarshalJSON(b []byte) error {
	f, err := parseLooseNumber(b)
	if err != nil {
		return fmt.Errorf("invalid amount %s: %w", b, err)
	}
	*a = Amount(f)
	return nil
}

// Int is an integer that may arrive as a JSON number or a numeric string.
type Int int

func (i *Int) UnmarshalJSON(b []byte) error {
	f, err := parseLooseNumber(b)
	if err != nil {
		return fmt.Errorf("invalid integer %s: %w", b, err)
	}
	*i = Int(f)
	return nil
}

func parseLooseNumber(b []byte) (float64, error) {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return 0, nil
	}
	b = bytes.Trim(b, `"`)
	if len(bytes.TrimSpace(b)) == 0 {
		return 0, nil
	}
	return strconv.ParseFloat(string(bytes.TrimSpace(b)), 64)
}

// Taxpayer statuses
const (
	TaxpayerActive    = "ACTIVE"
	TaxpayerInactive  = "INACTIVE"
	TaxpayerSuspended = "SUSPENDED"
)

// Taxpayer is a registered taxpayer, keyed by TIN.
type Taxpayer struct {
	TIN                        string    `json:"tin" yaml:"tin"`
	Name                       string    `json:"name" yaml:"name"`
	TaxpayerType               string    `json:"taxpayerType" yaml:"taxpayerType"`
	Region                     string    `json:"region,omitempty" yaml:"region,omitempty"`
	Sector                     string    `json:"sector,omitempty" yaml:"sector,omitempty"`
	Status                     string    `json:"status" yaml:"status"`
	Email                      string    `json:"email,omitempty" yaml:"email,omitempty"`
	Phone                      string    `json:"phone,omitempty" yaml:"phone,omitempty"`
	Address                    string    `json:"address,omitempty" yaml:"address,omitempty"`
	NationalID                 string    `json:"nationalId,omitempty" yaml:"nationalId,omitempty"`
	BusinessRegistrationNumber string    `json:"businessRegistrationNumber,omitempty" yaml:"businessRegistrationNumber,omitempty"`
	ComplianceScore            float64   `json:"complianceScore,omitempty" yaml:"complianceScore,omitempty"`
	BlockchainTxID             string    `json:"blockchainTxId,omitempty" yaml:"blockchainTxId,omitempty"`
	RegisteredAt               time.Time `json:"registeredAt,omitzero" yaml:"registeredAt,omitempty"`
}

// TaxpayerRegistration is the body of RegisterTaxpayer.
type TaxpayerRegistration struct {
	TIN                        string `json:"tin"`
	Name                       string `json:"name"`
	TaxpayerType               string `json:"taxpayerType"`
	Region                     string `json:"region,omitempty"`
	Sector                     string `json:"sector,omitempty"`
	Email                      string `json:"email,omitempty"`
	Phone                      string `json:"phone,omitempty"`
	Address                    string `json:"address,omitempty"`
	NationalID                 string `json:"nationalId,omitempty"`
	BusinessRegistrationNumber string `json:"businessRegistrationNumber,omitempty"`
}

// VAT transaction types
const (
	VATSale     = "SALE"
	VATPurchase = "PURCHASE"
)

// VATTransactionInput is the body of RecordVATTransaction.
type VATTransactionInput struct {
	TIN             string  `json:"tin"`
	InvoiceNumber   string  `json:"invoiceNumber"`
	TransactionDate string  `json:"transactionDate"`
	TransactionType string  `json:"transactionType"`
	NetAmount       float64 `json:"netAmount"`
	VATRate         float64 `json:"vatRate"`
	VATAmount       float64 `json:"vatAmount"`
	CounterpartyTIN string  `json:"counterpartyTin,omitempty"`
	Description     string  `json:"description,omitempty"`
}

// VATTransaction is a recorded VAT transaction.
type VATTransaction struct {
	ID              string    `json:"id" yaml:"id"`
	TIN             string    `json:"tin" yaml:"tin"`
	InvoiceNumber   string    `json:"invoiceNumber" yaml:"invoiceNumber"`
	TransactionDate string    `json:"transactionDate" yaml:"transactionDate"`
	TransactionType string    `json:"transactionType" yaml:"transactionType"`
	NetAmount       Amount    `json:"netAmount" yaml:"netAmount"`
	VATRate         Amount    `json:"vatRate" yaml:"vatRate"`
	VATAmount       Amount    `json:"vatAmount" yaml:"vatAmount"`
	CounterpartyTIN string    `json:"counterpartyTin,omitempty" yaml:"counterpartyTin,omitempty"`
	Description     string    `json:"description,omitempty" yaml:"description,omitempty"`
	Status          string    `json:"status" yaml:"status"`
	BlockchainTxID  string    `json:"blockchainTxId,omitempty" yaml:"blockchainTxId,omitempty"`
	CreatedAt       time.Time `json:"createdAt,omitzero" yaml:"createdAt,omitempty"`
}

// VATReport summarizes a taxpayer's VAT position for one period.
type VATReport struct {
	TIN              string `json:"tin" yaml:"tin"`
	Period           string `json:"period" yaml:"period"`
	TotalSales       Amount `json:"totalSales" yaml:"totalSales"`
	TotalPurchases   Amount `json:"totalPurchases" yaml:"totalPurchases"`
	OutputVAT        Amount `json:"outputVat" yaml:"outputVat"`
	InputVAT         Amount `json:"inputVat" yaml:"inputVat"`
	NetVATPayable    Amount `json:"netVatPayable" yaml:"netVatPayable"`
	TransactionCount Int    `json:"transactionCount" yaml:"transactionCount"`
}

// RegionCompliance is one row of the compliance dashboard's regional breakdown.
type RegionCompliance struct {
	Region    string  `json:"region" yaml:"region"`
	Score     float64 `json:"score" yaml:"score"`
	Taxpayers Int     `json:"taxpayers" yaml:"taxpayers"`
}

// TrendPoint is a score at a period.
type TrendPoint struct {
	Period string  `json:"period" yaml:"period"`
	Score  float64 `json:"score" yaml:"score"`
}

// ComplianceDashboard is the aggregate compliance picture.
type ComplianceDashboard struct {
	OverallScore          float64            `json:"overallScore" yaml:"overallScore"`
	TotalTaxpayers        Int                `json:"totalTaxpayers" yaml:"totalTaxpayers"`
	CompliantTaxpayers    Int                `json:"compliantTaxpayers" yaml:"compliantTaxpayers"`
	NonCompliantTaxpayers Int                `json:"nonCompliantTaxpayers" yaml:"nonCompliantTaxpayers"`
	PendingAudits         Int                `json:"pendingAudits" yaml:"pendingAudits"`
	TotalPenalties        Amount             `json:"totalPenalties" yaml:"totalPenalties"`
	ByRegion              []RegionCompliance `json:"byRegion" yaml:"byRegion"`
	Trends                []TrendPoint       `json:"trends" yaml:"trends"`
}

// ComplianceScore is one taxpayer's compliance rating.
type ComplianceScore struct {
	TIN       string             `json:"tin" yaml:"tin"`
	Score     float64            `json:"score" yaml:"score"`
	Rating    string             `json:"rating" yaml:"rating"`
	Factors   map[string]float64 `json:"factors,omitempty" yaml:"factors,omitempty"`
	UpdatedAt time.Time          `json:"updatedAt,omitzero" yaml:"updatedAt,omitempty"`
}

// Audit is a scheduled or completed taxpayer audit.
type Audit struct {
	ID            string    `json:"id" yaml:"id"`
	TIN           string    `json:"tin" yaml:"tin"`
	AuditType     string    `json:"auditType" yaml:"auditType"`
	Auditor       string    `json:"auditor" yaml:"auditor"`
	Status        string    `json:"status" yaml:"status"`
	ScheduledDate string    `json:"scheduledDate" yaml:"scheduledDate"`
	Reason        string    `json:"reason,omitempty" yaml:"reason,omitempty"`
	Findings      string    `json:"findings,omitempty" yaml:"findings,omitempty"`
	CreatedAt     time.Time `json:"createdAt,omitzero" yaml:"createdAt,omitempty"`
}

// AuditRequest is the body of ScheduleAudit.
type AuditRequest struct {
	TIN           string `json:"tin"`
	AuditType     string `json:"auditType"`
	Auditor       string `json:"auditor"`
	ScheduledDate string `json:"scheduledDate"`
	Reason        string `json:"reason,omitempty"`
}

// Penalty is a penalty levied on a taxpayer.
type Penalty struct {
	ID         string `json:"id" yaml:"id"`
	TIN        string `json:"tin" yaml:"tin"`
	Amount     Amount `json:"amount" yaml:"amount"`
	Reason     string `json:"reason" yaml:"reason"`
	Status     string `json:"status" yaml:"status"`
	IssuedDate string `json:"issuedDate" yaml:"issuedDate"`
	DueDate    string `json:"dueDate,omitempty" yaml:"dueDate,omitempty"`
}

// Analytics are compliance rates for a period and region.
type Analytics struct {
	Period           string         `json:"period" yaml:"period"`
	Region           string         `json:"region,omitempty" yaml:"region,omitempty"`
	ComplianceRate   float64        `json:"complianceRate" yaml:"complianceRate"`
	FilingRate       float64        `json:"filingRate" yaml:"filingRate"`
	PaymentRate      float64        `json:"paymentRate" yaml:"paymentRate"`
	RiskDistribution map[string]Int `json:"riskDistribution,omitempty" yaml:"riskDistribution,omitempty"`
}

// Assessment statuses
const (
	AssessmentPending  = "PENDING"
	AssessmentAssessed = "ASSESSED"
	AssessmentPaid     = "PAID"
	AssessmentOverdue  = "OVERDUE"
	AssessmentDisputed = "DISPUTED"
)

// Assessment is a tax assessment for one taxpayer, tax type and quarter.
type Assessment struct {
	ID             string    `json:"id" yaml:"id"`
	TIN            string    `json:"tin" yaml:"tin"`
	TaxType        string    `json:"taxType" yaml:"taxType"`
	Year           Int       `json:"year" yaml:"year"`
	Quarter        Int       `json:"quarter" yaml:"quarter"`
	Period         string    `json:"period" yaml:"period"`
	Amount         Amount    `json:"amount" yaml:"amount"`
	Currency       string    `json:"currency" yaml:"currency"`
	Status         string    `json:"status" yaml:"status"`
	Description    string    `json:"description" yaml:"description"`
	DueDate        string    `json:"dueDate" yaml:"dueDate"`
	Penalties      Amount    `json:"penalties" yaml:"penalties"`
	Interest       Amount    `json:"interest" yaml:"interest"`
	BlockchainTxID string    `json:"blockchainTxId,omitempty" yaml:"blockchainTxId,omitempty"`
	CreatedAt      time.Time `json:"createdAt,omitzero" yaml:"createdAt,omitempty"`
	UpdatedAt      time.Time `json:"updatedAt,omitzero" yaml:"updatedAt,omitempty"`
}

// AssessmentHistoryEntry is one recorded change to an assessment.
type AssessmentHistoryEntry struct {
	ID             string         `json:"id" yaml:"id"`
	AssessmentID   string         `json:"assessmentId" yaml:"assessmentId"`
	Action         string         `json:"action" yaml:"action"`
	Changes        map[string]any `json:"changes,omitempty" yaml:"changes,omitempty"`
	ChangedBy      string         `json:"changedBy,omitempty" yaml:"changedBy,omitempty"`
	BlockchainTxID string         `json:"blockchainTxId,omitempty" yaml:"blockchainTxId,omitempty"`
	Timestamp      time.Time      `json:"timestamp" yaml:"timestamp"`
}

// LedgerEntry is one ledger transaction that touched an assessment.
type LedgerEntry struct {
	TxID        string    `json:"txId" yaml:"txId"`
	BlockNumber Int       `json:"blockNumber" yaml:"blockNumber"`
	Action      string    `json:"action" yaml:"action"`
	DataHash    string    `json:"dataHash" yaml:"dataHash"`
	Timestamp   time.Time `json:"timestamp" yaml:"timestamp"`
}

// RevenueBreakdown is the revenue collected for one category (tax type or region).
type RevenueBreakdown struct {
	Category string `json:"category" yaml:"category"`
	Amount   Amount `json:"amount" yaml:"amount"`
}

// RevenuePoint is collected versus target revenue for one month.
type RevenuePoint struct {
	Month  string `json:"month" yaml:"month"`
	Amount Amount `json:"amount" yaml:"amount"`
	Target Amount `json:"target" yaml:"target"`
}

// RevenueDashboard is the aggregate revenue picture.
type RevenueDashboard struct {
	TotalRevenue   Amount             `json:"totalRevenue" yaml:"totalRevenue"`
	TargetRevenue  Amount             `json:"targetRevenue" yaml:"targetRevenue"`
	CollectionRate float64            `json:"collectionRate" yaml:"collectionRate"`
	ByTaxType      []RevenueBreakdown `json:"byTaxType" yaml:"byTaxType"`
	ByRegion       []RevenueBreakdown `json:"byRegion" yaml:"byRegion"`
	Monthly        []RevenuePoint     `json:"monthly" yaml:"monthly"`
}

// BlockchainStats describes the state of the ledger network.
type BlockchainStats struct {
	TotalTransactions Int       `json:"totalTransactions" yaml:"totalTransactions"`
	TotalBlocks       Int       `json:"totalBlocks" yaml:"totalBlocks"`
	ActiveNodes       Int       `json:"activeNodes" yaml:"activeNodes"`
	AverageBlockTime  float64   `json:"averageBlockTime" yaml:"averageBlockTime"`
	LastBlockHash     string    `json:"lastBlockHash" yaml:"lastBlockHash"`
	LastBlockTime     time.Time `json:"lastBlockTime,omitzero" yaml:"lastBlockTime,omitempty"`
	NetworkStatus     string    `json:"networkStatus" yaml:"networkStatus"`
}

// VerificationResult is the ledger's answer for one transaction id.
type VerificationResult struct {
	TxID        string         `json:"txId" yaml:"txId"`
	Verified    bool           `json:"verified" yaml:"verified"`
	BlockNumber Int            `json:"blockNumber" yaml:"blockNumber"`
	DataHash    string         `json:"dataHash" yaml:"dataHash"`
	EntityType  string         `json:"entityType,omitempty" yaml:"entityType,omitempty"`
	EntityID    string         `json:"entityId,omitempty" yaml:"entityId,omitempty"`
	Timestamp   time.Time      `json:"timestamp,omitzero" yaml:"timestamp,omitempty"`
	Record      map[string]any `json:"record,omitempty" yaml:"record,omitempty" canon:"record"`
}

// Matches reports whether record hashes to the DataHash the ledger recorded.
// A result without a DataHash never matches.
func (v *VerificationResult) Matches(record any) (bool, error) {
	if v.DataHash == "" {
		return false, nil
	}
	digest, err := canon.Digest(record)
	if err != nil {
		return false, err
	}
	return digest == v.DataHash, nil
}

// AuditLogEntry is one entry of the system audit trail.
type AuditLogEntry struct {
	ID         string         `json:"id" yaml:"id"`
	UserID     string         `json:"userId" yaml:"userId"`
	Action     string         `json:"action" yaml:"action"`
	EntityType string         `json:"entityType" yaml:"entityType"`
	EntityID   string         `json:"entityId,omitempty" yaml:"entityId,omitempty"`
	Details    map[string]any `json:"details,omitempty" yaml:"details,omitempty"`
	IPAddress  string         `json:"ipAddress,omitempty" yaml:"ipAddress,omitempty"`
	Timestamp  time.Time      `json:"timestamp" yaml:"timestamp"`
}

// Export is a downloaded file.
type Export struct {
	Data        []byte
	ContentType string
	Filename    string
}

// NIDAVerification is the national identity register's answer for one national id.
type NIDAVerification struct {
	NationalID  string `json:"nationalId" yaml:"nationalId"`
	Verified    bool   `json:"verified" yaml:"verified"`
	FullName    string `json:"fullName,omitempty" yaml:"fullName,omitempty"`
	DateOfBirth string `json:"dateOfBirth,omitempty" yaml:"dateOfBirth,omitempty"`
}

// SyncResult reports a synchronization with an external government system.
type SyncResult struct {
	System        string    `json:"system" yaml:"system"`
	Status        string    `json:"status" yaml:"status"`
	Reference     string    `json:"reference,omitempty" yaml:"reference,omitempty"`
	RecordsSynced Int       `json:"recordsSynced" yaml:"recordsSynced"`
	SyncedAt      time.Time `json:"syncedAt,omitzero" yaml:"syncedAt,omitempty"`
}
