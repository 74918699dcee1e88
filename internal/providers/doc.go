// Package providers talks to the language models that write briefings.
//
// Supported providers: Google (Gemini, the default), OpenAI (GPT), Anthropic
// (Claude), and Ollama / LM Studio for local models. Each adapter performs a
// single request and sorts failures into [AuthError], [RequestError] and
// [TransientError].
//
// [Invoker] layers the retry policy on top of an adapter: a deadline per
// attempt, exponential backoff between attempts, and an optional requests per
// minute limit. Use [New] to build an adapter from configuration and
// [NewInvoker] to wrap it.
package providers
