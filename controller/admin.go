package controller

import (
	"context"
	"net/http"

	"github.com/Laisky/errors/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/relayforge/gateway/apierr"
	"github.com/relayforge/gateway/common"
	"github.com/relayforge/gateway/common/network"
	"github.com/relayforge/gateway/middleware"
	"github.com/relayforge/gateway/model"
	"github.com/relayforge/gateway/store"
)

// Admin bundles the store.Gateway the CRUD handlers operate over (§5.8).
type Admin struct {
	Gateway *store.Gateway
}

// Healthz answers GET /admin/healthz with a bare liveness probe.
func (a *Admin) Healthz() gin.HandlerFunc {
	return func(c *gin.Context) { c.Status(http.StatusOK) }
}

// --- roles -----------------------------------------------------------------

// ListRoles handles GET /admin/roles.
func (a *Admin) ListRoles() gin.HandlerFunc {
	return func(c *gin.Context) {
		roles, err := a.Gateway.Roles.GetAll(c.Request.Context())
		if err != nil {
			middleware.AbortWithError(c, apierr.Wrap(apierr.InternalError, err, "list roles"))
			return
		}
		c.JSON(http.StatusOK, roles)
	}
}

// GetRole handles GET /admin/roles/:id.
func (a *Admin) GetRole() gin.HandlerFunc {
	return func(c *gin.Context) {
		role, err := a.Gateway.Roles.Get(c.Request.Context(), c.Param("id"))
		if handleStoreGetError(c, err) {
			return
		}
		c.JSON(http.StatusOK, role)
	}
}

// UpsertRole handles POST and PUT /admin/roles. A zero UUID on POST is
// assigned a fresh one; PUT requires a non-zero, existing UUID (§6).
func (a *Admin) UpsertRole(requireExisting bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		var role model.Role
		if err := c.ShouldBindJSON(&role); err != nil {
			middleware.AbortWithError(c, apierr.Wrap(apierr.BadRequest, err, "decode role"))
			return
		}

		if requireExisting && role.ID == uuid.Nil {
			middleware.AbortWithError(c, apierr.New(apierr.BadRequest, "PUT requires a non-zero id"))
			return
		}
		if role.ID == uuid.Nil {
			role.ID = uuid.New()
		}

		if err := a.Gateway.Roles.Insert(c.Request.Context(), role.ID.String(), role); err != nil {
			middleware.AbortWithError(c, apierr.Wrap(apierr.InternalError, err, "store role"))
			return
		}
		c.JSON(http.StatusOK, role)
	}
}

// DeleteRole handles DELETE /admin/roles/:id.
func (a *Admin) DeleteRole() gin.HandlerFunc {
	return func(c *gin.Context) {
		found, err := a.Gateway.Roles.Remove(c.Request.Context(), c.Param("id"))
		if err != nil {
			middleware.AbortWithError(c, apierr.Wrap(apierr.InternalError, err, "delete role"))
			return
		}
		if !found {
			middleware.AbortWithError(c, apierr.New(apierr.ModelNotFound, "role not found"))
			return
		}
		c.Status(http.StatusOK)
	}
}

// --- quotas ------------------------------------------------------------------

// ListQuotas handles GET /admin/quotas.
func (a *Admin) ListQuotas() gin.HandlerFunc {
	return func(c *gin.Context) {
		quotas, err := a.Gateway.Quotas.GetAll(c.Request.Context())
		if err != nil {
			middleware.AbortWithError(c, apierr.Wrap(apierr.InternalError, err, "list quotas"))
			return
		}
		c.JSON(http.StatusOK, quotas)
	}
}

// GetQuota handles GET /admin/quotas/:id.
func (a *Admin) GetQuota() gin.HandlerFunc {
	return func(c *gin.Context) {
		quota, err := a.Gateway.Quotas.Get(c.Request.Context(), c.Param("id"))
		if handleStoreGetError(c, err) {
			return
		}
		c.JSON(http.StatusOK, quota)
	}
}

// UpsertQuota handles POST and PUT /admin/quotas.
func (a *Admin) UpsertQuota(requireExisting bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		var quota model.Quota
		if err := c.ShouldBindJSON(&quota); err != nil {
			middleware.AbortWithError(c, apierr.Wrap(apierr.BadRequest, err, "decode quota"))
			return
		}
		if requireExisting && quota.ID == uuid.Nil {
			middleware.AbortWithError(c, apierr.New(apierr.BadRequest, "PUT requires a non-zero id"))
			return
		}
		if quota.ID == uuid.Nil {
			quota.ID = uuid.New()
		}
		if err := a.Gateway.Quotas.Insert(c.Request.Context(), quota.ID.String(), quota); err != nil {
			middleware.AbortWithError(c, apierr.Wrap(apierr.InternalError, err, "store quota"))
			return
		}
		c.JSON(http.StatusOK, quota)
	}
}

// DeleteQuota handles DELETE /admin/quotas/:id.
func (a *Admin) DeleteQuota() gin.HandlerFunc {
	return func(c *gin.Context) {
		found, err := a.Gateway.Quotas.Remove(c.Request.Context(), c.Param("id"))
		if err != nil {
			middleware.AbortWithError(c, apierr.Wrap(apierr.InternalError, err, "delete quota"))
			return
		}
		if !found {
			middleware.AbortWithError(c, apierr.New(apierr.ModelNotFound, "quota not found"))
			return
		}
		c.Status(http.StatusOK)
	}
}

// --- models --------------------------------------------------------------

// ListModels handles GET /admin/models. Encrypted credential fields are
// masked rather than returned, matching how user API keys are never echoed.
func (a *Admin) ListModels() gin.HandlerFunc {
	return func(c *gin.Context) {
		models, err := a.Gateway.Models.GetAll(c.Request.Context())
		if err != nil {
			middleware.AbortWithError(c, apierr.Wrap(apierr.InternalError, err, "list models"))
			return
		}
		for i := range models {
			maskBackendSecrets(&models[i].Backend)
		}
		c.JSON(http.StatusOK, models)
	}
}

// GetModel handles GET /admin/models/:id.
func (a *Admin) GetModel() gin.HandlerFunc {
	return func(c *gin.Context) {
		m, err := a.Gateway.Models.Get(c.Request.Context(), c.Param("id"))
		if handleStoreGetError(c, err) {
			return
		}
		maskBackendSecrets(&m.Backend)
		c.JSON(http.StatusOK, m)
	}
}

// maskBackendSecrets replaces an already-encrypted credential field with
// common.MaskSecret's placeholder before a Model is ever sent back to an
// admin client.
func maskBackendSecrets(b *model.BackendDescriptor) {
	switch b.Kind {
	case model.BackendOpenAI:
		b.OpenAI.APIKey = common.MaskSecret(b.OpenAI.APIKey)
	case model.BackendBedrock:
		b.Bedrock.SecretAccessKey = common.MaskSecret(b.Bedrock.SecretAccessKey)
	case model.BackendVertexAI:
		if len(b.VertexAI.CredentialsJSON) > 0 {
			b.VertexAI.CredentialsJSON = []byte(common.MaskSecret(string(b.VertexAI.CredentialsJSON)))
		}
	case model.BackendCoze:
		b.Coze.APIKey = common.MaskSecret(b.Coze.APIKey)
	}
}

// preserveMaskedSecrets carries an existing stored (already-encrypted)
// secret field forward when the submitted value is common.MaskSecret's
// placeholder — i.e. the admin re-submitted a Model they fetched via
// GetModel/ListModels without changing its credential. Returns true when a
// field was preserved, so the caller skips re-encrypting an already
// ciphertext value.
func preserveMaskedSecrets(submitted *model.BackendDescriptor, existing model.BackendDescriptor) bool {
	switch submitted.Kind {
	case model.BackendOpenAI:
		if common.IsMaskedSecret(submitted.OpenAI.APIKey) {
			submitted.OpenAI.APIKey = existing.OpenAI.APIKey
			return true
		}
	case model.BackendBedrock:
		if common.IsMaskedSecret(submitted.Bedrock.SecretAccessKey) {
			submitted.Bedrock.SecretAccessKey = existing.Bedrock.SecretAccessKey
			return true
		}
	case model.BackendVertexAI:
		if common.IsMaskedSecret(string(submitted.VertexAI.CredentialsJSON)) {
			submitted.VertexAI.CredentialsJSON = existing.VertexAI.CredentialsJSON
			return true
		}
	case model.BackendCoze:
		if common.IsMaskedSecret(submitted.Coze.APIKey) {
			submitted.Coze.APIKey = existing.Coze.APIKey
			return true
		}
	}
	return false
}

// UpsertModel handles POST and PUT /admin/models. Note: a running
// cmd/gateway process builds its worker pool from the store at boot and
// does not hot-reload on admin writes (§4.5 scopes a worker to "the running
// configuration"); a new or edited model only takes effect on restart.
func (a *Admin) UpsertModel(requireExisting bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		var m model.Model
		if err := c.ShouldBindJSON(&m); err != nil {
			middleware.AbortWithError(c, apierr.Wrap(apierr.BadRequest, err, "decode model"))
			return
		}
		if err := validateBackendURLs(c.Request.Context(), m.Backend); err != nil {
			middleware.AbortWithError(c, apierr.Wrap(apierr.BadRequest, err, "validate backend url"))
			return
		}
		preserved := false
		if m.ID != uuid.Nil {
			if existing, err := a.Gateway.Models.Get(c.Request.Context(), m.ID.String()); err == nil {
				preserved = preserveMaskedSecrets(&m.Backend, existing.Backend)
			}
		}
		if !preserved {
			if err := encryptBackendSecrets(&m.Backend); err != nil {
				middleware.AbortWithError(c, apierr.Wrap(apierr.InternalError, err, "encrypt backend secrets"))
				return
			}
		}
		if requireExisting && m.ID == uuid.Nil {
			middleware.AbortWithError(c, apierr.New(apierr.BadRequest, "PUT requires a non-zero id"))
			return
		}
		if m.ID == uuid.Nil {
			m.ID = uuid.New()
		}
		if err := a.Gateway.Models.Insert(c.Request.Context(), m.ID.String(), m); err != nil {
			middleware.AbortWithError(c, apierr.Wrap(apierr.InternalError, err, "store model"))
			return
		}
		c.JSON(http.StatusOK, m)
	}
}

// DeleteModel handles DELETE /admin/models/:id.
func (a *Admin) DeleteModel() gin.HandlerFunc {
	return func(c *gin.Context) {
		found, err := a.Gateway.Models.Remove(c.Request.Context(), c.Param("id"))
		if err != nil {
			middleware.AbortWithError(c, apierr.Wrap(apierr.InternalError, err, "delete model"))
			return
		}
		if !found {
			middleware.AbortWithError(c, apierr.New(apierr.ModelNotFound, "model not found"))
			return
		}
		c.Status(http.StatusOK)
	}
}

// --- users -----------------------------------------------------------------

// userDTO is the admin-facing user shape: APIKeys here are plaintext,
// hashed via store.HashAPIKey before ever reaching the store, so raw keys
// are never persisted (§4.7's related-key index is keyed on the digest).
type userDTO struct {
	ID       uuid.UUID   `json:"id"`
	Label    string      `json:"label"`
	APIKeys  []string    `json:"api_keys"`
	RoleIDs  []uuid.UUID `json:"role_ids"`
	ModelIDs []uuid.UUID `json:"model_ids"`
	QuotaIDs []uuid.UUID `json:"quota_ids"`
}

func (d userDTO) toModel() model.User {
	hashed := make([]string, len(d.APIKeys))
	for i, k := range d.APIKeys {
		hashed[i] = store.HashAPIKey(k)
	}
	return model.User{
		ID: d.ID, Label: d.Label, APIKeys: hashed,
		RoleIDs: d.RoleIDs, ModelIDs: d.ModelIDs, QuotaIDs: d.QuotaIDs,
	}
}

// GetUser handles GET /admin/users/:id. API key digests are never returned.
func (a *Admin) GetUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		u, err := a.Gateway.Users.Table().Get(c.Request.Context(), c.Param("id"))
		if handleStoreGetError(c, err) {
			return
		}
		u.APIKeys = nil
		c.JSON(http.StatusOK, u)
	}
}

// ListUsers handles GET /admin/users.
func (a *Admin) ListUsers() gin.HandlerFunc {
	return func(c *gin.Context) {
		users, err := a.Gateway.Users.Table().GetAll(c.Request.Context())
		if err != nil {
			middleware.AbortWithError(c, apierr.Wrap(apierr.InternalError, err, "list users"))
			return
		}
		for i := range users {
			users[i].APIKeys = nil
		}
		c.JSON(http.StatusOK, users)
	}
}

// UpsertUser handles POST and PUT /admin/users, using §4.7's
// insert_related_items so API-key uniqueness is enforced transactionally.
func (a *Admin) UpsertUser(requireExisting bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		var dto userDTO
		if err := c.ShouldBindJSON(&dto); err != nil {
			middleware.AbortWithError(c, apierr.Wrap(apierr.BadRequest, err, "decode user"))
			return
		}
		if requireExisting && dto.ID == uuid.Nil {
			middleware.AbortWithError(c, apierr.New(apierr.BadRequest, "PUT requires a non-zero id"))
			return
		}
		if dto.ID == uuid.Nil {
			dto.ID = uuid.New()
		}

		u := dto.toModel()
		if err := a.Gateway.Users.InsertRelatedItems(c.Request.Context(), u.ID.String(), u); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				middleware.AbortWithError(c, apierr.Wrap(apierr.BadRequest, err, "api key already belongs to another user"))
				return
			}
			middleware.AbortWithError(c, apierr.Wrap(apierr.InternalError, err, "store user"))
			return
		}
		u.APIKeys = nil
		c.JSON(http.StatusOK, u)
	}
}

// DeleteUser handles DELETE /admin/users/:id.
func (a *Admin) DeleteUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		found, err := a.Gateway.Users.RemoveRelatedItems(c.Request.Context(), c.Param("id"))
		if err != nil {
			middleware.AbortWithError(c, apierr.Wrap(apierr.InternalError, err, "delete user"))
			return
		}
		if !found {
			middleware.AbortWithError(c, apierr.New(apierr.ModelNotFound, "user not found"))
			return
		}
		c.Status(http.StatusOK)
	}
}

// encryptBackendSecrets encrypts the plaintext credential fields an admin
// submits (§4.7: stored models persist only encrypted secrets, never
// plaintext), using common.EncryptSecret; backend.New decrypts them again
// when a worker constructs a live client from the stored Model.
func encryptBackendSecrets(b *model.BackendDescriptor) error {
	switch b.Kind {
	case model.BackendOpenAI:
		enc, err := common.EncryptSecret(b.OpenAI.APIKey)
		if err != nil {
			return err
		}
		b.OpenAI.APIKey = enc
	case model.BackendBedrock:
		enc, err := common.EncryptSecret(b.Bedrock.SecretAccessKey)
		if err != nil {
			return err
		}
		b.Bedrock.SecretAccessKey = enc
	case model.BackendVertexAI:
		enc, err := common.EncryptSecret(string(b.VertexAI.CredentialsJSON))
		if err != nil {
			return err
		}
		b.VertexAI.CredentialsJSON = []byte(enc)
	case model.BackendCoze:
		enc, err := common.EncryptSecret(b.Coze.APIKey)
		if err != nil {
			return err
		}
		b.Coze.APIKey = enc
	}
	return nil
}

// validateBackendURLs rejects admin-submitted backend base URLs that resolve
// to a private or loopback address, so a model config can't be used to turn
// the gateway into an internal-network SSRF proxy.
func validateBackendURLs(ctx context.Context, b model.BackendDescriptor) error {
	switch b.Kind {
	case model.BackendOpenAI:
		_, err := network.ValidateExternalURL(ctx, b.OpenAI.BaseURL)
		return err
	case model.BackendCoze:
		_, err := network.ValidateExternalURL(ctx, b.Coze.BaseURL)
		return err
	default:
		return nil
	}
}

func handleStoreGetError(c *gin.Context, err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, store.ErrNotFound) {
		middleware.AbortWithError(c, apierr.New(apierr.ModelNotFound, "not found"))
		return true
	}
	middleware.AbortWithError(c, apierr.Wrap(apierr.InternalError, err, "store lookup"))
	return true
}
