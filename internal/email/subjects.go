package email

const subjectBookingConfirmation = "Your AI Discovery Session is Confirmed!"
