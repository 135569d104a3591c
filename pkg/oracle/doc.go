/*
Package oracle contains the classification oracle plumbing shared by every
provider: the Guard that bounds latency and retries, the prompt built from a
ClassifyRequest and the parser that validates a model's JSON answer.

Providers live in sub-packages:

  - openai: OpenAI Chat Completions.
  - anthropic: Anthropic Messages.
  - keyword: deterministic keyword rules, for offline use and tests.
*/
package oracle
