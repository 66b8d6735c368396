package config

const EnvPrefix = "IMS"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	StatusModeServer = "server"
	StatusModeClient = "client"
)

const (
	ServiceProducts    = "products"
	ServiceIngredients = "ingredients"
	ServiceMaterials   = "materials"
	ServiceMerchandise = "merchandise"
	ServiceRecipes     = "recipes"
	ServiceWaste       = "waste"
)

const (
	EnvAppEnv           = "IMS_APP_ENV"
	EnvUpstreamProducts = "IMS_UPSTREAM_PRODUCTS_URL"
	EnvUpstreamTimeout  = "IMS_UPSTREAM_TIMEOUT"
	EnvRedisURL         = "IMS_REDIS_URL"
	EnvSessionTTL       = "IMS_SESSION_TTL"
	EnvStatusIngredient = "IMS_STATUS_INGREDIENT"
)
