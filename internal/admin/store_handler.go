package admin

import (
	"errors"
	"strings"

	"meatengine/internal/audit"
	"meatengine/internal/models"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type StoreResponse struct {
	ID        uint   `json:"id"`
	CompanyID uint   `json:"company_id"`
	Name      string `json:"name"`
	Location  string `json:"location"`
	ProxyFor  *uint  `json:"proxy_store_id,omitempty"`
	CreatedAt string `json:"created_at"`
}

type CreateCompanyRequest struct {
	Name string `json:"name"`
}

type CreateStoreRequest struct {
	CompanyID uint   `json:"company_id"`
	Name      string `json:"name"`
	Location  string `json:"location"`
}

type CreateStoreManagerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func toStoreResponse(s models.Store, proxy *uint) StoreResponse {
	return StoreResponse{
		ID:        s.ID,
		CompanyID: s.CompanyID,
		Name:      s.Name,
		Location:  s.Location,
		ProxyFor:  proxy,
		CreatedAt: s.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

// POST /api/admin/companies
func CreateCompanyHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateCompanyRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		body.Name = strings.TrimSpace(body.Name)
		if body.Name == "" {
			return fiber.NewError(fiber.StatusBadRequest, "company name is required")
		}

		company := models.Company{Name: body.Name}
		if err := db.Create(&company).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fiber.NewError(fiber.StatusConflict, "a company with this name already exists")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "could not create company")
		}
		return c.Status(fiber.StatusCreated).JSON(company)
	}
}

// POST /api/admin/stores
func CreateStoreHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateStoreRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		body.Name = strings.TrimSpace(body.Name)
		if body.Name == "" || body.CompanyID == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "company_id and name are required")
		}

		var company models.Company
		if err := db.First(&company, body.CompanyID).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "company not found")
		}

		store := models.Store{CompanyID: company.ID, Name: body.Name, Location: strings.TrimSpace(body.Location)}
		actor := audit.ActorFrom(c)
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&store).Error; err != nil {
				return err
			}
			return audit.WriteLog(tx, audit.LogOptions{
				StoreID:     &store.ID,
				UserID:      actor.UserID,
				UserName:    actor.UserName,
				EntityType:  "store",
				EntityRef:   store.Name,
				Action:      models.AuditActionCreate,
				Description: "store created",
				After:       store,
			})
		})
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fiber.NewError(fiber.StatusConflict, "a store with this name already exists")
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not create store")
		}

		return c.Status(fiber.StatusCreated).JSON(toStoreResponse(store, nil))
	}
}

// GET /api/admin/stores?company_id=1
func ListStoresHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		q := db.Order("id")
		if cid := c.QueryInt("company_id"); cid > 0 {
			q = q.Where("company_id = ?", cid)
		}

		var stores []models.Store
		if err := q.Find(&stores).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not list stores")
		}

		var proxies []models.StoreProxy
		if err := db.Find(&proxies).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not list store proxies")
		}
		proxyOf := make(map[uint]uint, len(proxies))
		for _, p := range proxies {
			proxyOf[p.StoreID] = p.ProxyStoreID
		}

		res := make([]StoreResponse, 0, len(stores))
		for _, s := range stores {
			var proxy *uint
			if id, ok := proxyOf[s.ID]; ok {
				proxy = &id
			}
			res = append(res, toStoreResponse(s, proxy))
		}
		return c.JSON(res)
	}
}

// POST /api/admin/stores/:id/managers
func CreateStoreManagerHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var store models.Store
		if err := db.First(&store, c.Params("id")).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "store not found")
		}

		var body CreateStoreManagerRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		body.Email = strings.ToLower(strings.TrimSpace(body.Email))
		body.Name = strings.TrimSpace(body.Name)
		if body.Name == "" || body.Email == "" || body.Password == "" {
			return fiber.NewError(fiber.StatusBadRequest, "name, email and password are required")
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not hash password")
		}

		user := models.User{
			Name:         body.Name,
			Email:        body.Email,
			PasswordHash: string(hash),
			Role:         models.RoleStoreManager,
			StoreID:      &store.ID,
		}
		if err := db.Create(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fiber.NewError(fiber.StatusConflict, "this email is already registered")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "could not create store manager")
		}

		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"id":       user.ID,
			"name":     user.Name,
			"email":    user.Email,
			"role":     user.Role,
			"store_id": user.StoreID,
		})
	}
}
