package code

const (
	Success       = 200
	ParamErr      = 400
	NotFound      = 404
	HTTPStatusErr = 500
	Unavailable   = 503
)

const (
	MsgSuccess  = "success"
	MsgParamErr = "参数错误"
	MsgNotFound = "资源不存在"
	MsgInternal = "Internal server error"
)
