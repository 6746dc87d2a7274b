package handler

import (
	"net/http"

	"github.com/zeromicro/go-zero/rest"

	"github.com/pixles/authcore/internal/svc"
)

// RegisterHandlers wires every route named in spec §6 onto server, grouping
// the bearer-gated ones behind requireAuth the way the teacher's gateway
// wraps routes with RequiredAuthMiddleware.Handle.
func RegisterHandlers(server *rest.Server, svcCtx *svc.ServiceContext) {
	auth := requireAuth(svcCtx.Resolver)

	public := []rest.Route{
		{Method: http.MethodPost, Path: "/register", Handler: RegisterHandler(svcCtx)},
		{Method: http.MethodPost, Path: "/login", Handler: LoginHandler(svcCtx)},
		{Method: http.MethodPost, Path: "/refresh", Handler: RefreshHandler(svcCtx)},
		{Method: http.MethodPost, Path: "/password-reset-request", Handler: PasswordResetRequestHandler(svcCtx)},
		{Method: http.MethodPost, Path: "/password-reset", Handler: PasswordResetHandler(svcCtx)},
		{Method: http.MethodPost, Path: "/totp/verify-login", Handler: TOTPVerifyLoginHandler(svcCtx)},
		{Method: http.MethodPost, Path: "/passkey/auth/start", Handler: PasskeyAuthStartHandler(svcCtx)},
		{Method: http.MethodPost, Path: "/passkey/auth/finish", Handler: PasskeyAuthFinishHandler(svcCtx)},
	}

	protected := []rest.Route{
		{Method: http.MethodPost, Path: "/validate", Handler: ValidateHandler(svcCtx)},
		{Method: http.MethodPost, Path: "/logout", Handler: LogoutHandler(svcCtx)},
		{Method: http.MethodPost, Path: "/totp/enroll", Handler: TOTPEnrollHandler(svcCtx)},
		{Method: http.MethodPost, Path: "/totp/verify-enrollment", Handler: TOTPVerifyEnrollmentHandler(svcCtx)},
		{Method: http.MethodPost, Path: "/totp/disable", Handler: TOTPDisableHandler(svcCtx)},
		{Method: http.MethodPost, Path: "/passkey/register/start", Handler: PasskeyRegisterStartHandler(svcCtx)},
		{Method: http.MethodPost, Path: "/passkey/register/finish", Handler: PasskeyRegisterFinishHandler(svcCtx)},
		{Method: http.MethodPost, Path: "/upload", Handler: UploadCreateHandler(svcCtx)},
		{Method: http.MethodHead, Path: "/upload/:id", Handler: UploadHeadHandler(svcCtx)},
		{Method: http.MethodPatch, Path: "/upload/:id", Handler: UploadAppendHandler(svcCtx)},
		{Method: http.MethodDelete, Path: "/upload/:id", Handler: UploadCancelHandler(svcCtx)},
	}

	server.AddRoutes(public)
	server.AddRoutes(rest.WithMiddlewares([]rest.Middleware{auth}, protected...))
}
