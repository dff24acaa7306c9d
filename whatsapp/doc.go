// Package whatsapp adapts the WhatsApp Cloud API to the gateway: it decodes
// webhook deliveries into gateway.InboundMessage values, answers the webhook
// verification handshake, checks payload signatures, and sends text replies
// through the Graph API messages endpoint.
package whatsapp
