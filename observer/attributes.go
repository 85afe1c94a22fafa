package observer

import "go.opentelemetry.io/otel/attribute"

// Attribute keys for flow observability spans and metrics.
var (
	AttrExecutor = attribute.Key("flow.executor")
	AttrStatus   = attribute.Key("flow.status")

	AttrFunctionName  = attribute.Key("dispatch.function")
	AttrResultLength  = attribute.Key("dispatch.result_length")
	AttrDispatchError = attribute.Key("dispatch.error")

	AttrStrategy = attribute.Key("parse.strategy")
	AttrChatMode = attribute.Key("executor.chat_mode")
)
