package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/schooldesk/schooldesk/internal/auth"
	"github.com/schooldesk/schooldesk/internal/database/school"
	"github.com/schooldesk/schooldesk/internal/entities"
)

// SchoolStore defines the persistence operations behind the school
// resource endpoints.
type SchoolStore interface {
	ListStudents(ctx context.Context) ([]entities.Student, error)
	GetStudent(ctx context.Context, id uint) (*entities.Student, error)
	CreateStudent(ctx context.Context, student *entities.Student) error
	UpdateStudent(ctx context.Context, id uint, update *entities.Student) (*entities.Student, error)
	DeleteStudent(ctx context.Context, id uint) error
	ListStaff(ctx context.Context) ([]entities.Staff, error)
	CreateStaff(ctx context.Context, member *entities.Staff) error
	ListVendors(ctx context.Context) ([]entities.Vendor, error)
	CreateVendor(ctx context.Context, vendor *entities.Vendor) error
	ListRenewals(ctx context.Context) ([]entities.FeeRenewal, error)
	CreateRenewal(ctx context.Context, renewal *entities.FeeRenewal) error
	ListNotifications(ctx context.Context) ([]entities.Notification, error)
	CreateNotification(ctx context.Context, notification *entities.Notification) error
	ListPayments(ctx context.Context) ([]entities.Payment, error)
	CreatePayment(ctx context.Context, payment *entities.Payment) error
	ListExpenses(ctx context.Context) ([]entities.Expense, error)
	CreateExpense(ctx context.Context, expense *entities.Expense) error
}

var _ SchoolStore = (*school.Repository)(nil)

// ResourcesController serves the school records. Every route sits behind
// the auth gate.
type ResourcesController struct {
	store SchoolStore
}

func NewResourcesController(store SchoolStore) *ResourcesController {
	return &ResourcesController{store: store}
}

// RegisterRoutes mounts the resource routes on an already gated group.
// Staff and expense writes are limited to Admin and Accountant.
func (rc *ResourcesController) RegisterRoutes(group *gin.RouterGroup, mw *auth.Middleware) {
	finance := mw.RequireRole(entities.UserRoleAdmin, entities.UserRoleAccountant)

	group.GET("/students", rc.ListStudents)
	group.POST("/students", rc.CreateStudent)
	group.GET("/students/:id", rc.GetStudent)
	group.PUT("/students/:id", rc.UpdateStudent)
	group.DELETE("/students/:id", rc.DeleteStudent)

	group.GET("/staff", rc.ListStaff)
	group.POST("/staff", finance, rc.CreateStaff)

	group.GET("/vendors", rc.ListVendors)
	group.POST("/vendors", rc.CreateVendor)

	group.GET("/renewals", rc.ListRenewals)
	group.POST("/renewals", rc.CreateRenewal)

	group.GET("/notifications", rc.ListNotifications)
	group.POST("/notifications", rc.CreateNotification)

	group.GET("/payments", rc.ListPayments)
	group.POST("/payments", rc.CreatePayment)

	group.GET("/expenses", rc.ListExpenses)
	group.POST("/expenses", finance, rc.CreateExpense)
}

// list writes the result of a List* call.
func list[T any](c *gin.Context, items []T, err error) {
	if err != nil {
		respondError(c, err)
		return
	}
	if items == nil {
		items = []T{}
	}
	c.JSON(http.StatusOK, items)
}

// create binds the body into a new T, calls save and writes 201.
func create[T any](c *gin.Context, save func(context.Context, *T) error) {
	item := new(T)
	if !bindJSON(c, item) {
		return
	}
	if err := save(c.Request.Context(), item); err != nil {
		respondError(c, err)
		return
	}
	respondCreated(c, item)
}

// GET /api/students
func (rc *ResourcesController) ListStudents(c *gin.Context) {
	students, err := rc.store.ListStudents(c.Request.Context())
	list(c, students, err)
}

// GET /api/students/:id
func (rc *ResourcesController) GetStudent(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	student, err := rc.store.GetStudent(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, student)
}

// POST /api/students
func (rc *ResourcesController) CreateStudent(c *gin.Context) {
	create(c, func(ctx context.Context, s *entities.Student) error {
		s.ID = 0
		return rc.store.CreateStudent(ctx, s)
	})
}

// PUT /api/students/:id
func (rc *ResourcesController) UpdateStudent(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var update entities.Student
	if !bindJSON(c, &update) {
		return
	}
	student, err := rc.store.UpdateStudent(c.Request.Context(), id, &update)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, student)
}

// DELETE /api/students/:id
func (rc *ResourcesController) DeleteStudent(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := rc.store.DeleteStudent(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, "student deleted")
}

func (rc *ResourcesController) ListStaff(c *gin.Context) {
	staff, err := rc.store.ListStaff(c.Request.Context())
	list(c, staff, err)
}

func (rc *ResourcesController) CreateStaff(c *gin.Context) {
	create(c, func(ctx context.Context, s *entities.Staff) error {
		s.ID = 0
		return rc.store.CreateStaff(ctx, s)
	})
}

func (rc *ResourcesController) ListVendors(c *gin.Context) {
	vendors, err := rc.store.ListVendors(c.Request.Context())
	list(c, vendors, err)
}

func (rc *ResourcesController) CreateVendor(c *gin.Context) {
	create(c, func(ctx context.Context, v *entities.Vendor) error {
		v.ID = 0
		return rc.store.CreateVendor(ctx, v)
	})
}

func (rc *ResourcesController) ListRenewals(c *gin.Context) {
	renewals, err := rc.store.ListRenewals(c.Request.Context())
	list(c, renewals, err)
}

func (rc *ResourcesController) CreateRenewal(c *gin.Context) {
	create(c, func(ctx context.Context, r *entities.FeeRenewal) error {
		r.ID = 0
		return rc.store.CreateRenewal(ctx, r)
	})
}

func (rc *ResourcesController) ListNotifications(c *gin.Context) {
	notifications, err := rc.store.ListNotifications(c.Request.Context())
	list(c, notifications, err)
}

func (rc *ResourcesController) CreateNotification(c *gin.Context) {
	create(c, func(ctx context.Context, n *entities.Notification) error {
		n.ID = 0
		return rc.store.CreateNotification(ctx, n)
	})
}

func (rc *ResourcesController) ListPayments(c *gin.Context) {
	payments, err := rc.store.ListPayments(c.Request.Context())
	list(c, payments, err)
}

func (rc *ResourcesController) CreatePayment(c *gin.Context) {
	create(c, func(ctx context.Context, p *entities.Payment) error {
		p.ID = 0
		return rc.store.CreatePayment(ctx, p)
	})
}

func (rc *ResourcesController) ListExpenses(c *gin.Context) {
	expenses, err := rc.store.ListExpenses(c.Request.Context())
	list(c, expenses, err)
}

func (rc *ResourcesController) CreateExpense(c *gin.Context) {
	create(c, func(ctx context.Context, e *entities.Expense) error {
		e.ID = 0
		return rc.store.CreateExpense(ctx, e)
	})
}
