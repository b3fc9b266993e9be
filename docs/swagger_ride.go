package docs

// @title           Ride Service API
// @version         1.0
// @description     Ride lifecycle and real-time matching: customers post rides, riders apply or accept, the customer approves one rider. Exactly one rider is ever assigned to a ride. Status changes are broadcast over /ws and can always be reconciled with GET /rides/{ride_id}.

// @host      localhost:3000
// @BasePath  /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
