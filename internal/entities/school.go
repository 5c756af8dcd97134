package entities

import "time"

// Student status values
const (
	StudentStatusActive    = "active"
	StudentStatusInactive  = "inactive"
	StudentStatusGraduated = "graduated"
)

type Student struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	RollNumber    string     `gorm:"uniqueIndex;size:64;not null" json:"rollNumber" binding:"required"`
	Name          string     `gorm:"size:255;not null" json:"name" binding:"required"`
	Email         *string    `gorm:"size:255" json:"email" binding:"omitempty,email"`
	Phone         *string    `gorm:"size:32" json:"phone"`
	Class         string     `gorm:"size:32;not null" json:"class" binding:"required"`
	Section       string     `gorm:"size:32;not null" json:"section" binding:"required"`
	DateOfBirth   *time.Time `json:"dateOfBirth"`
	GuardianName  *string    `gorm:"size:255" json:"guardianName"`
	GuardianPhone *string    `gorm:"size:32" json:"guardianPhone"`
	Address       *string    `gorm:"type:text" json:"address"`
	AdmissionDate time.Time  `gorm:"not null" json:"admissionDate" binding:"required"`
	Status        string     `gorm:"size:20;not null;default:active" json:"status" binding:"omitempty,oneof=active inactive graduated"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

type Staff struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	EmployeeID    string    `gorm:"uniqueIndex;size:64;not null" json:"employeeId" binding:"required"`
	Name          string    `gorm:"size:255;not null" json:"name" binding:"required"`
	Email         string    `gorm:"size:255;not null" json:"email" binding:"required,email"`
	Phone         string    `gorm:"size:32;not null" json:"phone" binding:"required"`
	Department    string    `gorm:"size:128;not null" json:"department" binding:"required"`
	Designation   string    `gorm:"size:128;not null" json:"designation" binding:"required"`
	DateOfJoining time.Time `gorm:"not null" json:"dateOfJoining" binding:"required"`
	Salary        string    `gorm:"size:16;not null" json:"salary" binding:"required,money"`
	Status        string    `gorm:"size:20;not null;default:active" json:"status" binding:"omitempty,oneof=active on-leave inactive"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type Vendor struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Name          string    `gorm:"size:255;not null" json:"name" binding:"required"`
	Category      string    `gorm:"size:128;not null" json:"category" binding:"required"`
	ContactPerson string    `gorm:"size:255;not null" json:"contactPerson" binding:"required"`
	Email         *string   `gorm:"size:255" json:"email" binding:"omitempty,email"`
	Phone         string    `gorm:"size:32;not null" json:"phone" binding:"required"`
	Address       *string   `gorm:"type:text" json:"address"`
	Status        string    `gorm:"size:20;not null;default:active" json:"status"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type FeeRenewal struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	StudentID       uint       `gorm:"index;not null" json:"studentId" binding:"required"`
	Student         *Student   `gorm:"foreignKey:StudentID" json:"-" binding:"-"`
	AcademicYear    string     `gorm:"size:16;not null" json:"academicYear" binding:"required"` // e.g. "2024-2025"
	Term            string     `gorm:"size:32;not null" json:"term" binding:"required"`         // e.g. "Q1", "Annual"
	FeeAmount       string     `gorm:"size:16;not null" json:"feeAmount" binding:"required,money"`
	DueDate         time.Time  `gorm:"not null" json:"dueDate" binding:"required"`
	PaidAmount      string     `gorm:"size:16;not null;default:0" json:"paidAmount" binding:"omitempty,money"`
	Status          string     `gorm:"size:20;not null;default:pending" json:"status" binding:"omitempty,oneof=pending paid overdue partial"`
	RenewalDate     *time.Time `json:"renewalDate"`
	LastPaymentDate *time.Time `json:"lastPaymentDate"`
	Notes           *string    `gorm:"type:text" json:"notes"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

type Notification struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	RecipientType string     `gorm:"size:20;not null" json:"recipientType" binding:"required,oneof=student staff guardian"`
	RecipientID   uint       `gorm:"not null" json:"recipientId" binding:"required"`
	Type          string     `gorm:"size:10;not null" json:"type" binding:"required,oneof=email sms"`
	Subject       *string    `gorm:"size:255" json:"subject"`
	Message       string     `gorm:"type:text;not null" json:"message" binding:"required"`
	Status        string     `gorm:"size:20;not null;default:pending" json:"status" binding:"omitempty,oneof=pending sent failed"`
	SentAt        *time.Time `json:"sentAt"`
	ErrorMessage  *string    `gorm:"type:text" json:"errorMessage"`
	CreatedAt     time.Time  `json:"createdAt"`
}

type Payment struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	StudentID     uint       `gorm:"index;not null" json:"studentId" binding:"required"`
	Amount        string     `gorm:"size:16;not null" json:"amount" binding:"required,money"`
	PaymentType   string     `gorm:"size:100;not null" json:"paymentType" binding:"required"`
	PaymentDate   *time.Time `json:"paymentDate"`
	Status        string     `gorm:"size:20;not null;default:pending" json:"status"`
	PaymentMethod *string    `gorm:"size:50" json:"paymentMethod"`
	TransactionID *string    `gorm:"size:100" json:"transactionId"`
}

type Expense struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Category    string     `gorm:"size:100;not null" json:"category" binding:"required"`
	Description *string    `gorm:"type:text" json:"description"`
	Amount      string     `gorm:"size:16;not null" json:"amount" binding:"required,money"`
	ExpenseDate *time.Time `json:"expenseDate"`
	Status      string     `gorm:"size:20;not null;default:pending" json:"status"`
	VendorID    *uint      `json:"vendorId"`
	ReceiptURL  *string    `gorm:"size:500" json:"receiptUrl" binding:"omitempty,url"`
}
