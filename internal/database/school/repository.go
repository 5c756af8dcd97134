// Package school provides database operations for the school records served
// behind the authenticated API: students, staff, vendors, fee renewals,
// notifications, payments and expenses.
//
// # Usage
//
//	repo := school.NewRepository(db)
//	students, err := repo.ListStudents(ctx)
package school

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/schooldesk/schooldesk/internal/entities"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
)

// Repository handles all school record database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new school repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// ListStudents returns all students, newest first.
func (r *Repository) ListStudents(ctx context.Context) ([]entities.Student, error) {
	var students []entities.Student
	err := r.db.WithContext(ctx).Order("created_at DESC, id DESC").Find(&students).Error
	return students, err
}

// GetStudent retrieves a student by ID.
func (r *Repository) GetStudent(ctx context.Context, id uint) (*entities.Student, error) {
	var student entities.Student
	if err := r.db.WithContext(ctx).First(&student, id).Error; err != nil {
		return nil, translate(err)
	}
	return &student, nil
}

// CreateStudent inserts a student. Roll numbers are unique.
func (r *Repository) CreateStudent(ctx context.Context, student *entities.Student) error {
	if student.Status == "" {
		student.Status = entities.StudentStatusActive
	}
	exists, err := r.exists(ctx, &entities.Student{}, "roll_number = ? AND id <> ?", student.RollNumber, student.ID)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("roll number %q: %w", student.RollNumber, ErrDuplicate)
	}
	if err := r.db.WithContext(ctx).Create(student).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("roll number %q: %w", student.RollNumber, ErrDuplicate)
		}
		return fmt.Errorf("failed to create student: %w", err)
	}
	return nil
}

// UpdateStudent replaces the mutable fields of an existing student.
func (r *Repository) UpdateStudent(ctx context.Context, id uint, update *entities.Student) (*entities.Student, error) {
	existing, err := r.GetStudent(ctx, id)
	if err != nil {
		return nil, err
	}

	exists, err := r.exists(ctx, &entities.Student{}, "roll_number = ? AND id <> ?", update.RollNumber, id)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("roll number %q: %w", update.RollNumber, ErrDuplicate)
	}

	update.ID = existing.ID
	update.CreatedAt = existing.CreatedAt
	if update.Status == "" {
		update.Status = existing.Status
	}
	if err := r.db.WithContext(ctx).Save(update).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("roll number %q: %w", update.RollNumber, ErrDuplicate)
		}
		return nil, fmt.Errorf("failed to update student: %w", err)
	}
	return update, nil
}

// DeleteStudent removes a student and the renewals and payments recorded against them.
func (r *Repository) DeleteStudent(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("student_id = ?", id).Delete(&entities.FeeRenewal{}).Error; err != nil {
			return err
		}
		if err := tx.Where("student_id = ?", id).Delete(&entities.Payment{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&entities.Student{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// ListStaff returns all staff members ordered by name.
func (r *Repository) ListStaff(ctx context.Context) ([]entities.Staff, error) {
	var staff []entities.Staff
	err := r.db.WithContext(ctx).Order("name ASC").Find(&staff).Error
	return staff, err
}

// CreateStaff inserts a staff member. Employee IDs are unique.
func (r *Repository) CreateStaff(ctx context.Context, member *entities.Staff) error {
	if member.Status == "" {
		member.Status = "active"
	}
	exists, err := r.exists(ctx, &entities.Staff{}, "employee_id = ?", member.EmployeeID)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("employee id %q: %w", member.EmployeeID, ErrDuplicate)
	}
	if err := r.db.WithContext(ctx).Create(member).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("employee id %q: %w", member.EmployeeID, ErrDuplicate)
		}
		return fmt.Errorf("failed to create staff member: %w", err)
	}
	return nil
}

// ListVendors returns all vendors ordered by name.
func (r *Repository) ListVendors(ctx context.Context) ([]entities.Vendor, error) {
	var vendors []entities.Vendor
	err := r.db.WithContext(ctx).Order("name ASC").Find(&vendors).Error
	return vendors, err
}

func (r *Repository) CreateVendor(ctx context.Context, vendor *entities.Vendor) error {
	if vendor.Status == "" {
		vendor.Status = "active"
	}
	if err := r.db.WithContext(ctx).Create(vendor).Error; err != nil {
		return fmt.Errorf("failed to create vendor: %w", err)
	}
	return nil
}

// ListRenewals returns fee renewals ordered by due date.
func (r *Repository) ListRenewals(ctx context.Context) ([]entities.FeeRenewal, error) {
	var renewals []entities.FeeRenewal
	err := r.db.WithContext(ctx).Order("due_date ASC, id ASC").Find(&renewals).Error
	return renewals, err
}

// CreateRenewal inserts a fee renewal for an existing student.
func (r *Repository) CreateRenewal(ctx context.Context, renewal *entities.FeeRenewal) error {
	if _, err := r.GetStudent(ctx, renewal.StudentID); err != nil {
		return fmt.Errorf("student %d: %w", renewal.StudentID, err)
	}
	if renewal.Status == "" {
		renewal.Status = "pending"
	}
	if renewal.PaidAmount == "" {
		renewal.PaidAmount = "0.00"
	}
	if err := r.db.WithContext(ctx).Create(renewal).Error; err != nil {
		return fmt.Errorf("failed to create renewal: %w", err)
	}
	return nil
}

// ListNotifications returns notifications, newest first.
func (r *Repository) ListNotifications(ctx context.Context) ([]entities.Notification, error) {
	var notifications []entities.Notification
	err := r.db.WithContext(ctx).Order("created_at DESC, id DESC").Find(&notifications).Error
	return notifications, err
}

func (r *Repository) CreateNotification(ctx context.Context, notification *entities.Notification) error {
	if notification.Status == "" {
		notification.Status = "pending"
	}
	if err := r.db.WithContext(ctx).Create(notification).Error; err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

// ListPayments returns payments, newest first.
func (r *Repository) ListPayments(ctx context.Context) ([]entities.Payment, error) {
	var payments []entities.Payment
	err := r.db.WithContext(ctx).Order("id DESC").Find(&payments).Error
	return payments, err
}

// CreatePayment records a payment for an existing student.
func (r *Repository) CreatePayment(ctx context.Context, payment *entities.Payment) error {
	if _, err := r.GetStudent(ctx, payment.StudentID); err != nil {
		return fmt.Errorf("student %d: %w", payment.StudentID, err)
	}
	if payment.Status == "" {
		payment.Status = "pending"
	}
	if err := r.db.WithContext(ctx).Create(payment).Error; err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

// ListExpenses returns expenses, newest first.
func (r *Repository) ListExpenses(ctx context.Context) ([]entities.Expense, error) {
	var expenses []entities.Expense
	err := r.db.WithContext(ctx).Order("id DESC").Find(&expenses).Error
	return expenses, err
}

func (r *Repository) CreateExpense(ctx context.Context, expense *entities.Expense) error {
	if expense.Status == "" {
		expense.Status = "pending"
	}
	if err := r.db.WithContext(ctx).Create(expense).Error; err != nil {
		return fmt.Errorf("failed to create expense: %w", err)
	}
	return nil
}

func (r *Repository) exists(ctx context.Context, model any, query string, args ...any) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(model).Where(query, args...).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
