package config

const (
	//? These paths must match the paths in the embed directive

	StaticLocalDir = "static"
	StaticURLPath  = "/" + StaticLocalDir + "/"

	MemorialsLocalDir = "memorials"
	MemorialsURLPath  = "/" + MemorialsLocalDir + "/"

	WizardURLPath    = "/wizard/"
	DashboardURLPath = "/dashboard"

	TemplatesLocalDir = "templates"

	TemplateLayout         = "layout.html"
	TemplateIndex          = "index.html"
	TemplateDashboard      = "dashboard.html"
	TemplateMemorial       = "memorial.html"
	TemplateMemorialUnlock = "memorial_unlock.html"
	TemplateWizard         = "wizard.html"
	TemplateAuth           = "auth.html"
)
