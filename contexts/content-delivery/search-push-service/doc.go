// Package searchpushservice pushes freshly published article URLs to the
// Baidu link-submission API. It is an independent failure domain: push
// outcomes never feed back into distribution rule or record state.
package searchpushservice
