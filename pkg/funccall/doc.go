// Package funccall implements the textual function-call protocol that lets
// a model without native tool calling take part in a tool-calling exchange.
//
// Request side: the declared tools are serialized as a JSON array and
// prepended to the latest user message:
//
//	<<function>>[{"type":"function","function":{...}}]
//	<<question>>What is the weather in Paris?
//
// Response side: the model answers with zero or more call markers anywhere
// in its text:
//
//	<<function>>get_weather(city='Paris', days=3)<<function>>get_time(tz="CET")
//
// [ParseCalls] extracts the calls, [ParseArguments] tokenizes one argument
// list, and [BuildCompletion] / [AdaptResponse] assemble a standard
// Chat Completions record with either tool calls or plain text.
//
// Parsing is best effort and never fails: segments that do not look like a
// call are dropped, and argument values that are not JSON literals are kept
// as strings. Arguments are not validated against the declared schema.
package funccall

const (
	// FunctionMarker delimits the tool schema block in prompts and each
	// call in model output.
	FunctionMarker = "<<function>>"

	// QuestionMarker precedes the original user content in prompts.
	QuestionMarker = "<<question>>"
)
